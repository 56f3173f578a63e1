// Package access determines whether the configured credentials can push to a repository.
//
// GitHubChecker and GitLabChecker query the platform REST APIs once per repository and reduce
// the response to a Status through ClassifyHTTPOutcome. Every call is bounded by a connect
// timeout and a total request timeout and is never retried. ArchiveSizeProbe reports the
// download size of a repository's latest release or tag archive.
package access
