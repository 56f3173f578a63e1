package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/temirov/gitaccess/internal/execshell"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

const (
	gitStatusSubcommandConstant         = "status"
	gitShortFlagConstant                = "-s"
	gitDiffSubcommandConstant           = "diff"
	gitMinimalFlagConstant              = "--minimal"
	gitCachedFlagConstant               = "--cached"
	gitNameOnlyFlagConstant             = "--name-only"
	gitAddSubcommandConstant            = "add"
	gitPathspecSeparatorConstant        = "--"
	gitCheckoutSubcommandConstant       = "checkout"
	gitCreateBranchFlagConstant         = "-b"
	gitCommitSubcommandConstant         = "commit"
	gitMessageFlagConstant              = "-m"
	gitRemoteSubcommandConstant         = "remote"
	gitGetURLSubcommandConstant         = "get-url"
	gitPushSubcommandConstant           = "push"
	gitSetUpstreamFlagConstant          = "-u"
	lineSeparatorConstant               = "\n"
	carriageReturnConstant              = "\r"
	executorNotConfiguredMessage        = "git executor not configured"
	repositoryOperationTemplateConstant = "%s failed in %s: %w"
	emptyRemoteURLTemplateConstant      = "remote %s in %s has no url"
)

// ErrGitExecutorNotConfigured indicates the repository manager was built without an executor.
var ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessage)

// changedFilePattern matches porcelain short status lines such as " M src/Widget.php" or "?? new.txt".
var changedFilePattern = regexp.MustCompile(`^[ MARC?]{2} (.+)$`)

// RepositoryManager runs git working tree operations through a shell executor.
type RepositoryManager struct {
	executor shared.GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor shared.GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// WorkingTreeStatus returns `git status -s` output.
func (manager *RepositoryManager) WorkingTreeStatus(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.run(executionContext, repositoryPath, gitStatusSubcommandConstant, gitShortFlagConstant)
}

// UnstagedDiff returns `git diff --minimal` output.
func (manager *RepositoryManager) UnstagedDiff(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.run(executionContext, repositoryPath, gitDiffSubcommandConstant, gitMinimalFlagConstant)
}

// StagedFiles lists paths staged for the next commit.
func (manager *RepositoryManager) StagedFiles(executionContext context.Context, repositoryPath string) ([]string, error) {
	output, runError := manager.run(executionContext, repositoryPath, gitDiffSubcommandConstant, gitCachedFlagConstant, gitNameOnlyFlagConstant)
	if runError != nil {
		return nil, runError
	}
	stagedFiles := make([]string, 0)
	for _, line := range splitOutputLines(output) {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) > 0 {
			stagedFiles = append(stagedFiles, trimmedLine)
		}
	}
	return stagedFiles, nil
}

// ChangedFiles lists modified, added, renamed, copied and untracked paths from the short status.
func (manager *RepositoryManager) ChangedFiles(executionContext context.Context, repositoryPath string) ([]string, error) {
	output, runError := manager.WorkingTreeStatus(executionContext, repositoryPath)
	if runError != nil {
		return nil, runError
	}
	return ParseChangedFiles(output), nil
}

// StageFile stages a single path.
func (manager *RepositoryManager) StageFile(executionContext context.Context, repositoryPath string, filePath string) error {
	_, runError := manager.run(executionContext, repositoryPath, gitAddSubcommandConstant, gitPathspecSeparatorConstant, filePath)
	return runError
}

// CreateBranch creates and switches to a new branch.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, runError := manager.run(executionContext, repositoryPath, gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, branchName)
	return runError
}

// Commit records staged changes.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	_, runError := manager.run(executionContext, repositoryPath, gitCommitSubcommandConstant, gitMessageFlagConstant, message)
	return runError
}

// GetRemoteURL reads the configured url of a remote.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	output, runError := manager.run(executionContext, repositoryPath, gitRemoteSubcommandConstant, gitGetURLSubcommandConstant, remoteName)
	if runError != nil {
		return "", runError
	}
	remoteURL := strings.TrimSpace(output)
	if len(remoteURL) == 0 {
		return "", fmt.Errorf(emptyRemoteURLTemplateConstant, remoteName, repositoryPath)
	}
	return remoteURL, nil
}

// PushBranch pushes a branch to an explicit url and records it as upstream.
func (manager *RepositoryManager) PushBranch(executionContext context.Context, repositoryPath string, remoteURL string, branchName string) error {
	_, runError := manager.run(executionContext, repositoryPath, gitPushSubcommandConstant, gitSetUpstreamFlagConstant, remoteURL, branchName)
	return runError
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, arguments ...string) (string, error) {
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", fmt.Errorf(repositoryOperationTemplateConstant, strings.Join(append([]string{string(execshell.CommandGit)}, arguments[0]), " "), repositoryPath, executionError)
	}
	return result.StandardOutput, nil
}

// ParseChangedFiles extracts paths from `git status -s` output.
func ParseChangedFiles(statusOutput string) []string {
	changedFiles := make([]string, 0)
	for _, line := range splitOutputLines(statusOutput) {
		matches := changedFilePattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		changedFiles = append(changedFiles, matches[1])
	}
	return changedFiles
}

func splitOutputLines(output string) []string {
	normalizedOutput := strings.ReplaceAll(output, carriageReturnConstant, "")
	return strings.Split(normalizedOutput, lineSeparatorConstant)
}

var _ shared.RepositoryManager = (*RepositoryManager)(nil)
