package changes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/audit"
	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/credentials"
	"github.com/temirov/gitaccess/internal/prompt"
	"github.com/temirov/gitaccess/internal/repos/dependencies"
	"github.com/temirov/gitaccess/internal/repos/shared"
	"github.com/temirov/gitaccess/internal/state"
)

const (
	commandUseConstant                    = "changes"
	commandShortDescriptionConstant       = "Review, stage and push changes in writable contributed checkouts"
	commandLongDescriptionConstant        = "changes scans the docroot for contributed modules and profiles with their own git checkout, classifies write access for each, shows the working tree of every writable checkout and, with --interactive, offers to stage files, commit them on a new branch and push it."
	unexpectedArgumentsMessageConstant    = "changes does not accept positional arguments"
	flagInteractiveNameConstant           = "interactive"
	flagInteractiveShorthandConstant      = "i"
	flagInteractiveDescriptionConstant    = "Prompt for add, branch and push actions (requires a terminal)"
	flagDocrootNameConstant               = "docroot"
	flagDocrootDescriptionConstant        = "Drupal docroot holding modules/contrib and profiles/contrib"
	flagLockFileNameConstant              = "lock-file"
	flagLockFileDescriptionConstant       = "Path to composer.lock"
	flagStateFileNameConstant             = "state-file"
	flagStateFileDescriptionConstant      = "Path to the access state file"
	flagAccessCheckNameConstant           = "access-check"
	flagAccessCheckDescriptionConstant    = "Check a single repository url and exit without touching the state file"
	flagForceAccessCheckNameConstant      = "force-access-check"
	flagForceAccessCheckDescription       = "Re-check repositories cached as read-write"
	flagClearAccessCacheNameConstant      = "clear-access-cache"
	flagClearAccessCacheDescription       = "Delete the state file before running"
	flagDebugNameConstant                 = "debug"
	flagDebugDescriptionConstant          = "Enable debug logging for this run"
	checkingAccessMessageConstant         = "Checking repository access for all packages...\n"
	accessCacheClearedMessageConstant     = "Access cache cleared.\n"
	discoveryErrorTemplateConstant        = "unable to discover checkouts: %w"
	lockReadErrorTemplateConstant         = "unable to read repository urls: %w"
	stateSaveErrorTemplateConstant        = "unable to save state: %w"
	stateClearErrorTemplateConstant       = "unable to clear state: %w"
	logMessageInteractiveDisabledConstant = "standard input is not a terminal, running without prompts"
	logMessageReviewStartedConstant       = "change review started"
	logFieldDocrootConstant               = "docroot"
	logFieldCheckoutCountConstant         = "checkout_count"
	logFieldInteractiveConstant           = "interactive"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the changes cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider                LoggerProvider
	HumanReadableLoggingProvider  func() bool
	DebugActivator                func()
	ConfigurationProvider         func() CommandConfiguration
	PlatformConfigurationProvider func() audit.PlatformConfiguration
	TerminalDetector              func() bool
	FileSystem                    afero.Fs
	EnvironmentLookup             credentials.EnvironmentLookup
	GitExecutor                   shared.GitExecutor
	RepositoryManager             shared.RepositoryManager
	CheckoutDiscoverer            shared.CheckoutDiscoverer
	Prompter                      prompt.Prompter
	Clock                         clock.Clock
}

type commandOptions struct {
	configuration    CommandConfiguration
	platforms        audit.PlatformConfiguration
	singleURL        string
	forceAccessCheck bool
	clearAccessCache bool
}

// Build constructs the cobra command for the change review workflow.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().BoolP(flagInteractiveNameConstant, flagInteractiveShorthandConstant, false, flagInteractiveDescriptionConstant)
	command.Flags().String(flagDocrootNameConstant, defaults.Docroot, flagDocrootDescriptionConstant)
	command.Flags().String(flagLockFileNameConstant, defaults.LockFile, flagLockFileDescriptionConstant)
	command.Flags().String(flagStateFileNameConstant, defaults.StateFile, flagStateFileDescriptionConstant)
	command.Flags().String(flagAccessCheckNameConstant, "", flagAccessCheckDescriptionConstant)
	command.Flags().Bool(flagForceAccessCheckNameConstant, false, flagForceAccessCheckDescription)
	command.Flags().Bool(flagClearAccessCacheNameConstant, false, flagClearAccessCacheDescription)
	command.Flags().Bool(flagDebugNameConstant, false, flagDebugDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	options := builder.parseOptions(command)
	logger := builder.resolveLogger()
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)
	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	output := command.OutOrStdout()

	tokens, tokenError := audit.LoadPlatformTokens(executionContext, fileSystem, builder.EnvironmentLookup, options.platforms)
	if tokenError != nil {
		return tokenError
	}
	driverConfiguration := audit.DriverConfiguration{
		GitHubToken:  tokens.GitHubToken,
		GitLabToken:  tokens.GitLabToken,
		ForceRecheck: options.forceAccessCheck,
	}
	platformCheckers, checkersError := audit.NewPlatformCheckers(driverConfiguration, options.platforms, logger)
	if checkersError != nil {
		return checkersError
	}

	if len(options.singleURL) > 0 {
		audit.CheckSingleURL(executionContext, output, platformCheckers.AccessCheckers(), options.singleURL)
		return nil
	}

	stateStore := state.NewFileStore(fileSystem, logger)
	if options.clearAccessCache {
		if clearError := stateStore.Clear(options.configuration.StateFile); clearError != nil {
			return fmt.Errorf(stateClearErrorTemplateConstant, clearError)
		}
		fmt.Fprint(output, accessCacheClearedMessageConstant)
	}

	checkouts, discoveryError := dependencies.ResolveCheckoutDiscoverer(builder.CheckoutDiscoverer, fileSystem).DiscoverCheckouts(options.configuration.Docroot)
	if discoveryError != nil {
		return fmt.Errorf(discoveryErrorTemplateConstant, discoveryError)
	}
	packages, lockError := composer.NewLockReader(fileSystem).ReadPackages(options.configuration.LockFile)
	if lockError != nil {
		return fmt.Errorf(lockReadErrorTemplateConstant, lockError)
	}

	observer := dependencies.ResolveCommandEventObserver(logger, builder.humanReadableLogging())
	gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger, observer)
	if executorError != nil {
		return executorError
	}
	repositoryManager, managerError := dependencies.ResolveRepositoryManager(builder.RepositoryManager, gitExecutor)
	if managerError != nil {
		return managerError
	}

	interactive := options.configuration.Interactive
	if interactive && !builder.isTerminal() {
		logger.Warn(logMessageInteractiveDisabledConstant)
		interactive = false
	}

	service, serviceError := NewService(ServiceDependencies{
		RepositoryManager: repositoryManager,
		Prompter:          builder.resolvePrompter(command, output),
		Clock:             builder.Clock,
		Output:            output,
		Logger:            logger,
	})
	if serviceError != nil {
		return serviceError
	}

	logger.Info(
		logMessageReviewStartedConstant,
		zap.String(logFieldDocrootConstant, options.configuration.Docroot),
		zap.Int(logFieldCheckoutCountConstant, len(checkouts)),
		zap.Bool(logFieldInteractiveConstant, interactive),
	)

	document := stateStore.Load(options.configuration.StateFile)
	fmt.Fprint(output, checkingAccessMessageConstant)
	driver := audit.NewBatchDriver(driverConfiguration, audit.DriverDependencies{
		Checkers:       platformCheckers.AccessCheckers(),
		Clock:          builder.Clock,
		RequestDelay:   options.platforms.RequestDelay,
		ProgressWriter: output,
		Logger:         logger,
	})
	result := driver.Run(executionContext, audit.CheckoutTargets(checkouts, packages), document)

	reviewError := service.Review(executionContext, result, document, Options{
		BranchPrefix:  options.configuration.BranchPrefix,
		CommitMessage: options.configuration.CommitMessage,
		Interactive:   interactive,
	})

	if saveError := stateStore.Save(options.configuration.StateFile, document); saveError != nil {
		return fmt.Errorf(stateSaveErrorTemplateConstant, saveError)
	}
	if errors.Is(reviewError, ErrWorkflowCancelled) {
		return nil
	}
	return reviewError
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) commandOptions {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	platforms := audit.DefaultPlatformConfiguration()
	if builder.PlatformConfigurationProvider != nil {
		platforms = builder.PlatformConfigurationProvider()
	}

	commandFlags := command.Flags()
	if commandFlags.Changed(flagInteractiveNameConstant) {
		configuration.Interactive, _ = commandFlags.GetBool(flagInteractiveNameConstant)
	}
	if commandFlags.Changed(flagDocrootNameConstant) {
		configuration.Docroot, _ = commandFlags.GetString(flagDocrootNameConstant)
	}
	if commandFlags.Changed(flagLockFileNameConstant) {
		configuration.LockFile, _ = commandFlags.GetString(flagLockFileNameConstant)
	}
	if commandFlags.Changed(flagStateFileNameConstant) {
		configuration.StateFile, _ = commandFlags.GetString(flagStateFileNameConstant)
	}

	debugEnabled, _ := commandFlags.GetBool(flagDebugNameConstant)
	if debugEnabled && builder.DebugActivator != nil {
		builder.DebugActivator()
	}

	singleURL, _ := commandFlags.GetString(flagAccessCheckNameConstant)
	forceAccessCheck, _ := commandFlags.GetBool(flagForceAccessCheckNameConstant)
	clearAccessCache, _ := commandFlags.GetBool(flagClearAccessCacheNameConstant)

	return commandOptions{
		configuration:    configuration.sanitize(),
		platforms:        platforms.Sanitize(),
		singleURL:        strings.TrimSpace(singleURL),
		forceAccessCheck: forceAccessCheck,
		clearAccessCache: clearAccessCache,
	}
}

func (builder *CommandBuilder) resolvePrompter(command *cobra.Command, output io.Writer) prompt.Prompter {
	if builder.Prompter != nil {
		return builder.Prompter
	}
	return prompt.NewIOPrompter(command.InOrStdin(), output)
}

func (builder *CommandBuilder) isTerminal() bool {
	if builder.TerminalDetector != nil {
		return builder.TerminalDetector()
	}
	standardInput := os.Stdin.Fd()
	return isatty.IsTerminal(standardInput) || isatty.IsCygwinTerminal(standardInput)
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
