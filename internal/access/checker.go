package access

import "context"

// Checker classifies access to a repository identified by its platform path.
// A non-nil error accompanies StatusCheckFailed and carries the cause.
type Checker interface {
	CheckAccess(executionContext context.Context, repositoryPath string) (Status, error)
}

var (
	_ Checker        = (*GitHubChecker)(nil)
	_ Checker        = (*GitLabChecker)(nil)
	_ ArchiveLocator = (*GitHubChecker)(nil)
	_ ArchiveLocator = (*GitLabChecker)(nil)
)
