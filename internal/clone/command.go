package clone

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/prompt"
	"github.com/temirov/gitaccess/internal/repos/dependencies"
	"github.com/temirov/gitaccess/internal/repos/shared"
	"github.com/temirov/gitaccess/internal/ui"
	"github.com/temirov/gitaccess/internal/utils/flags"
)

const (
	commandUseConstant                 = "clone"
	commandShortDescriptionConstant    = "Clone contributed extensions and copy their .git folders into the docroot"
	commandLongDescriptionConstant     = "clone reads the contributed modules, profiles and themes from composer.lock, clones each into the repositories root, checks out the locked reference and copies the .git folder into the installed extension so that git diff shows local changes."
	unexpectedArgumentsMessageConstant = "clone does not accept positional arguments"
	flagLockFileNameConstant           = "lock-file"
	flagLockFileDescriptionConstant    = "Path to composer.lock"
	flagDocrootNameConstant            = "docroot"
	flagDocrootDescriptionConstant     = "Drupal docroot holding the installed extensions"
	flagRepositoriesRootNameConstant   = "repositories-root"
	flagRepositoriesRootDescription    = "Directory receiving the clones"
	flagDebugNameConstant              = "debug"
	flagDebugDescriptionConstant       = "Enable debug logging for this run"
	lockReadErrorTemplateConstant      = "unable to read packages: %w"
	logMessageCloneStartedConstant     = "clone workflow started"
	logFieldRepositoriesRootConstant   = "repositories_root"
	logFieldDryRunConstant             = "dry_run"
	logFieldAssumeYesConstant          = "assume_yes"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the clone cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	DebugActivator               func()
	ConfigurationProvider        func() CommandConfiguration
	FileSystem                   afero.Fs
	Cloner                       RepositoryCloner
	RsyncExecutor                shared.RsyncExecutor
	Prompter                     prompt.Prompter
}

// Build constructs the cobra command for the clone workflow.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().String(flagLockFileNameConstant, defaults.LockFile, flagLockFileDescriptionConstant)
	command.Flags().String(flagDocrootNameConstant, defaults.Docroot, flagDocrootDescriptionConstant)
	command.Flags().String(flagRepositoriesRootNameConstant, defaults.RepositoriesRoot, flagRepositoriesRootDescription)
	command.Flags().Bool(flagDebugNameConstant, false, flagDebugDescriptionConstant)
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{DryRun: defaults.DryRun, AssumeYes: defaults.AssumeYes})

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.parseConfiguration(command)
	logger := builder.resolveLogger()
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)
	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	output := command.OutOrStdout()

	packages, lockError := composer.NewLockReader(fileSystem).ReadPackages(configuration.LockFile)
	if lockError != nil {
		return fmt.Errorf(lockReadErrorTemplateConstant, lockError)
	}

	observer := dependencies.ResolveCommandEventObserver(logger, builder.humanReadableLogging())
	rsyncExecutor, executorError := dependencies.ResolveRsyncExecutor(builder.RsyncExecutor, logger, observer)
	if executorError != nil {
		return executorError
	}

	service, serviceError := NewService(ServiceDependencies{
		FileSystem:    fileSystem,
		Cloner:        builder.resolveCloner(),
		RsyncExecutor: rsyncExecutor,
		Prompter:      builder.resolvePrompter(command, output),
		Output:        output,
		Logger:        logger,
	})
	if serviceError != nil {
		return serviceError
	}

	logger.Info(
		logMessageCloneStartedConstant,
		zap.String(logFieldRepositoriesRootConstant, configuration.RepositoriesRoot),
		zap.Bool(logFieldDryRunConstant, configuration.DryRun),
		zap.Bool(logFieldAssumeYesConstant, configuration.AssumeYes),
	)

	runError := service.Run(executionContext, packages, Options{
		Docroot:          configuration.Docroot,
		RepositoriesRoot: configuration.RepositoriesRoot,
		DryRun:           configuration.DryRun,
		AssumeYes:        configuration.AssumeYes,
		ColorEnabled:     ui.ColorEnabledFor(output),
	})
	if errors.Is(runError, ErrCloneCancelled) {
		return nil
	}
	return runError
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	commandFlags := command.Flags()
	if commandFlags.Changed(flagLockFileNameConstant) {
		configuration.LockFile, _ = commandFlags.GetString(flagLockFileNameConstant)
	}
	if commandFlags.Changed(flagDocrootNameConstant) {
		configuration.Docroot, _ = commandFlags.GetString(flagDocrootNameConstant)
	}
	if commandFlags.Changed(flagRepositoriesRootNameConstant) {
		configuration.RepositoriesRoot, _ = commandFlags.GetString(flagRepositoriesRootNameConstant)
	}

	executionFlags := flags.ResolveExecutionFlags(command)
	if executionFlags.DryRunSet {
		configuration.DryRun = executionFlags.DryRun
	}
	if executionFlags.AssumeYesSet {
		configuration.AssumeYes = executionFlags.AssumeYes
	}

	debugEnabled, _ := commandFlags.GetBool(flagDebugNameConstant)
	if debugEnabled && builder.DebugActivator != nil {
		builder.DebugActivator()
	}

	return configuration.sanitize()
}

func (builder *CommandBuilder) resolveCloner() RepositoryCloner {
	if builder.Cloner != nil {
		return builder.Cloner
	}
	return GoGitRepositoryCloner{}
}

func (builder *CommandBuilder) resolvePrompter(command *cobra.Command, output io.Writer) prompt.Prompter {
	if builder.Prompter != nil {
		return builder.Prompter
	}
	return prompt.NewIOPrompter(command.InOrStdin(), output)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}
