// Package gitrepo normalizes repository locations and runs git working tree operations.
//
// CanonicalizeRepositoryURL reduces the many spellings of a repository location to the
// single key used by the access cache. ClassifyPlatform and ExtractRepositoryPath derive the
// hosting platform and the API path from that key. RepositoryManager wraps the git commands
// used by the review workflow.
package gitrepo
