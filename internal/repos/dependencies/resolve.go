package dependencies

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/execshell"
	"github.com/temirov/gitaccess/internal/gitrepo"
	"github.com/temirov/gitaccess/internal/repos/discovery"
	"github.com/temirov/gitaccess/internal/repos/shared"
	"github.com/temirov/gitaccess/internal/ui"
)

// ResolveCheckoutDiscoverer returns the provided discoverer or a filesystem-backed default.
func ResolveCheckoutDiscoverer(existing shared.CheckoutDiscoverer, fileSystem afero.Fs) shared.CheckoutDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewCheckoutScanner(fileSystem)
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing afero.Fs) afero.Fs {
	if existing != nil {
		return existing
	}
	return afero.NewOsFs()
}

// ResolveShellExecutor returns a shell-backed executor that reports through the observer when one is given.
func ResolveShellExecutor(logger *zap.Logger, observer execshell.CommandEventObserver) (*execshell.ShellExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return execshell.NewShellExecutorWithObserver(logger, execshell.NewOSCommandRunner(), observer)
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, observer execshell.CommandEventObserver) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	return ResolveShellExecutor(logger, observer)
}

// ResolveComposerExecutor returns the provided executor or constructs a shell-backed default.
func ResolveComposerExecutor(existing shared.ComposerExecutor, logger *zap.Logger, observer execshell.CommandEventObserver) (shared.ComposerExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	return ResolveShellExecutor(logger, observer)
}

// ResolveRsyncExecutor returns the provided executor or constructs a shell-backed default.
func ResolveRsyncExecutor(existing shared.RsyncExecutor, logger *zap.Logger, observer execshell.CommandEventObserver) (shared.RsyncExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	return ResolveShellExecutor(logger, observer)
}

// ResolveRepositoryManager returns the provided repository manager or constructs one from the executor.
func ResolveRepositoryManager(existing shared.RepositoryManager, executor shared.GitExecutor) (shared.RepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	return gitrepo.NewRepositoryManager(executor)
}

// ResolveCommandEventObserver renders command events on the console when human-readable logging is active.
func ResolveCommandEventObserver(logger *zap.Logger, humanReadableLogging bool) execshell.CommandEventObserver {
	if !humanReadableLogging {
		return nil
	}
	return ui.NewConsoleCommandEventLogger(logger)
}
