package clone

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	originRemoteNameConstant          = "origin"
	remoteRevisionTemplateConstant    = "%s/%s"
	cloneErrorTemplateConstant        = "unable to clone %s: %w"
	openErrorTemplateConstant         = "unable to open repository %s: %w"
	resolveRevisionErrorTemplate      = "unable to resolve reference %s: %w"
	worktreeErrorTemplateConstant     = "unable to open worktree of %s: %w"
	checkoutErrorTemplateConstant     = "unable to check out %s: %w"
	emptyReferenceMessageConstant     = "reference must not be empty"
	emptyRepositoryURLMessageConstant = "repository url must not be empty"
)

var (
	errEmptyReference     = errors.New(emptyReferenceMessageConstant)
	errEmptyRepositoryURL = errors.New(emptyRepositoryURLMessageConstant)
)

// RepositoryCloner clones repositories and checks out references inside them.
type RepositoryCloner interface {
	Clone(executionContext context.Context, repositoryURL string, destination string) error
	Checkout(executionContext context.Context, repositoryPath string, reference string) error
}

// GoGitRepositoryCloner implements RepositoryCloner with go-git on the OS filesystem.
type GoGitRepositoryCloner struct{}

// Clone clones repositoryURL with all tags into destination.
func (GoGitRepositoryCloner) Clone(executionContext context.Context, repositoryURL string, destination string) error {
	if len(repositoryURL) == 0 {
		return errEmptyRepositoryURL
	}
	_, cloneError := git.PlainCloneContext(executionContext, destination, false, &git.CloneOptions{
		URL:        repositoryURL,
		RemoteName: originRemoteNameConstant,
		Tags:       git.AllTags,
	})
	if cloneError != nil {
		return fmt.Errorf(cloneErrorTemplateConstant, repositoryURL, cloneError)
	}
	return nil
}

// Checkout detaches the worktree at reference. Branches that only exist on origin are resolved through their remote-tracking ref.
func (GoGitRepositoryCloner) Checkout(executionContext context.Context, repositoryPath string, reference string) error {
	if len(reference) == 0 {
		return errEmptyReference
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	repository, openError := git.PlainOpen(repositoryPath)
	if openError != nil {
		return fmt.Errorf(openErrorTemplateConstant, repositoryPath, openError)
	}

	hash, resolveError := repository.ResolveRevision(plumbing.Revision(reference))
	if resolveError != nil {
		remoteHash, remoteError := repository.ResolveRevision(plumbing.Revision(fmt.Sprintf(remoteRevisionTemplateConstant, originRemoteNameConstant, reference)))
		if remoteError != nil {
			return fmt.Errorf(resolveRevisionErrorTemplate, reference, resolveError)
		}
		hash = remoteHash
	}

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return fmt.Errorf(worktreeErrorTemplateConstant, repositoryPath, worktreeError)
	}
	if checkoutError := worktree.Checkout(&git.CheckoutOptions{Hash: *hash}); checkoutError != nil {
		return fmt.Errorf(checkoutErrorTemplateConstant, reference, checkoutError)
	}
	return nil
}

var _ RepositoryCloner = GoGitRepositoryCloner{}
