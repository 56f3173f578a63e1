package shared

import (
	"context"

	"github.com/temirov/gitaccess/internal/execshell"
)

// OriginRemoteNameConstant identifies the remote consulted before pushing.
const OriginRemoteNameConstant = "origin"

// GitExecutor exposes the subset of shell execution used for git operations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ComposerExecutor runs composer subcommands.
type ComposerExecutor interface {
	ExecuteComposer(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RsyncExecutor runs rsync.
type RsyncExecutor interface {
	ExecuteRsync(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager exposes the working tree operations used by the review workflow.
type RepositoryManager interface {
	WorkingTreeStatus(executionContext context.Context, repositoryPath string) (string, error)
	UnstagedDiff(executionContext context.Context, repositoryPath string) (string, error)
	StagedFiles(executionContext context.Context, repositoryPath string) ([]string, error)
	ChangedFiles(executionContext context.Context, repositoryPath string) ([]string, error)
	StageFile(executionContext context.Context, repositoryPath string, filePath string) error
	CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	PushBranch(executionContext context.Context, repositoryPath string, remoteURL string, branchName string) error
}

// Checkout is a contributed extension directory tracked by git.
type Checkout struct {
	MachineName string
	Path        string
}

// CheckoutDiscoverer locates git-tracked contributed extensions below a docroot.
type CheckoutDiscoverer interface {
	DiscoverCheckouts(docroot string) ([]Checkout, error)
}
