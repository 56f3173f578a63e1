package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/credentials"
	"github.com/temirov/gitaccess/internal/repos/dependencies"
	"github.com/temirov/gitaccess/internal/repos/shared"
	"github.com/temirov/gitaccess/internal/state"
	"github.com/temirov/gitaccess/internal/ui"
	"github.com/temirov/gitaccess/internal/utils/flags"
)

const (
	commandUseConstant                   = "access"
	commandShortDescriptionConstant      = "Classify write access for every repository in composer.lock"
	commandLongDescriptionConstant       = "access reads repository urls from composer.lock (or composer show), checks write access through the GitHub and GitLab APIs, caches the results in a state file and prints a per-platform summary."
	unexpectedArgumentsMessageConstant   = "access does not accept positional arguments"
	flagLockFileNameConstant             = "lock-file"
	flagLockFileDescriptionConstant      = "Path to composer.lock"
	flagComposerDirectoryNameConstant    = "composer-dir"
	flagComposerDirectoryDescription     = "Read urls from `composer show --installed` run in this directory instead of composer.lock"
	flagStateFileNameConstant            = "state-file"
	flagStateFileDescriptionConstant     = "Path to the access state file"
	flagForceAccessCheckNameConstant     = "force-access-check"
	flagForceAccessCheckDescription      = "Re-check repositories cached as read-write"
	flagShowProblematicNameConstant      = "show-problematic"
	flagShowProblematicDescription       = "List inaccessible, check_failed and unknown repositories"
	flagAccessCheckNameConstant          = "access-check"
	flagAccessCheckDescriptionConstant   = "Check a single repository url and exit without touching the state file"
	flagClearAccessCacheNameConstant     = "clear-access-cache"
	flagClearAccessCacheDescription      = "Delete the state file before running"
	flagReportFormatNameConstant         = "report-format"
	flagReportFormatDescriptionConstant  = "Summary output format"
	flagDebugNameConstant                = "debug"
	flagDebugDescriptionConstant         = "Enable debug logging for this run"
	accessCacheClearedMessageConstant    = "Access cache cleared.\n"
	lockReadErrorTemplateConstant        = "unable to read repository urls: %w"
	stateSaveErrorTemplateConstant       = "unable to save state: %w"
	stateClearErrorTemplateConstant      = "unable to clear state: %w"
	reportErrorTemplateConstant          = "unable to write report: %w"
	logMessageAccessRunStartedConstant   = "access check started"
	logMessageAccessRunCompletedConstant = "access check completed"
	logFieldTargetCountConstant          = "target_count"
	logFieldStateFileConstant            = "state_file"
	logFieldForceConstant                = "force_access_check"
	logFieldWritableCountConstant        = "writable_count"
	logFieldReadOnlyCountConstant        = "read_only_count"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

var reportFormatFlag = flags.ChoiceFlag{
	Name:        flagReportFormatNameConstant,
	Choices:     []string{ReportFormatText, ReportFormatJSON, ReportFormatYAML},
	Description: flagReportFormatDescriptionConstant,
}

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the access cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider                LoggerProvider
	HumanReadableLoggingProvider  func() bool
	DebugActivator                func()
	ConfigurationProvider         func() CommandConfiguration
	PlatformConfigurationProvider func() PlatformConfiguration
	FileSystem                    afero.Fs
	EnvironmentLookup             credentials.EnvironmentLookup
	ComposerExecutor              shared.ComposerExecutor
	Clock                         clock.Clock
}

type commandOptions struct {
	configuration    CommandConfiguration
	platforms        PlatformConfiguration
	singleURL        string
	clearAccessCache bool
}

// Build constructs the cobra command for repository access audits.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().String(flagLockFileNameConstant, defaults.LockFile, flagLockFileDescriptionConstant)
	command.Flags().String(flagComposerDirectoryNameConstant, "", flagComposerDirectoryDescription)
	command.Flags().String(flagStateFileNameConstant, defaults.StateFile, flagStateFileDescriptionConstant)
	command.Flags().Bool(flagForceAccessCheckNameConstant, false, flagForceAccessCheckDescription)
	command.Flags().Bool(flagShowProblematicNameConstant, false, flagShowProblematicDescription)
	command.Flags().String(flagAccessCheckNameConstant, "", flagAccessCheckDescriptionConstant)
	command.Flags().Bool(flagClearAccessCacheNameConstant, false, flagClearAccessCacheDescription)
	reportFormatFlag.Bind(command, defaults.ReportFormat)
	command.Flags().Bool(flagDebugNameConstant, false, flagDebugDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	options := builder.parseOptions(command)
	reportFormat, reportFormatError := reportFormatFlag.Normalize(options.configuration.ReportFormat)
	if reportFormatError != nil {
		return reportFormatError
	}
	options.configuration.ReportFormat = reportFormat
	logger := builder.resolveLogger()
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)
	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}

	tokens, tokenError := LoadPlatformTokens(executionContext, fileSystem, builder.EnvironmentLookup, options.platforms)
	if tokenError != nil {
		return tokenError
	}

	driverConfiguration := DriverConfiguration{
		GitHubToken:      tokens.GitHubToken,
		GitLabToken:      tokens.GitLabToken,
		ForceRecheck:     options.configuration.ForceAccessCheck,
		SizeCheckTargets: options.configuration.SizeCheckTargets,
	}
	platformCheckers, checkersError := NewPlatformCheckers(driverConfiguration, options.platforms, logger)
	if checkersError != nil {
		return checkersError
	}

	output := command.OutOrStdout()
	if len(options.singleURL) > 0 {
		CheckSingleURL(executionContext, output, platformCheckers.AccessCheckers(), options.singleURL)
		return nil
	}

	stateStore := state.NewFileStore(fileSystem, logger)
	if options.clearAccessCache {
		if clearError := stateStore.Clear(options.configuration.StateFile); clearError != nil {
			return fmt.Errorf(stateClearErrorTemplateConstant, clearError)
		}
		fmt.Fprint(output, accessCacheClearedMessageConstant)
	}

	targets, targetsError := builder.collectTargets(executionContext, options.configuration, fileSystem, logger)
	if targetsError != nil {
		return fmt.Errorf(lockReadErrorTemplateConstant, targetsError)
	}

	document := stateStore.Load(options.configuration.StateFile)
	if len(targets) == 0 {
		if saveError := stateStore.Save(options.configuration.StateFile, document); saveError != nil {
			return fmt.Errorf(stateSaveErrorTemplateConstant, saveError)
		}
		return ErrNoRepositoriesDiscovered
	}

	progressWriter := output
	if options.configuration.ReportFormat != ReportFormatText {
		progressWriter = command.ErrOrStderr()
	}

	logger.Info(
		logMessageAccessRunStartedConstant,
		zap.Int(logFieldTargetCountConstant, len(targets)),
		zap.String(logFieldStateFileConstant, options.configuration.StateFile),
		zap.Bool(logFieldForceConstant, options.configuration.ForceAccessCheck),
	)

	driver := NewBatchDriver(driverConfiguration, DriverDependencies{
		Checkers:       platformCheckers.AccessCheckers(),
		SizeProbe:      access.NewArchiveSizeProbe(platformCheckers.ArchiveLocators(), options.platforms.SizeProbeTimeout, logger),
		Clock:          builder.Clock,
		RequestDelay:   options.platforms.RequestDelay,
		ProgressWriter: progressWriter,
		Logger:         logger,
	})
	result := driver.Run(executionContext, targets, document)
	saveError := stateStore.Save(options.configuration.StateFile, document)

	logger.Info(
		logMessageAccessRunCompletedConstant,
		zap.Int(logFieldWritableCountConstant, len(result.Writable)),
		zap.Int(logFieldReadOnlyCountConstant, len(result.ReadOnly)),
	)

	reportWriter := ReportWriter{
		Writer:          output,
		Format:          options.configuration.ReportFormat,
		ShowProblematic: options.configuration.ShowProblematic,
		ColorEnabled:    ui.ColorEnabledFor(output),
	}
	if reportError := reportWriter.Write(result.Summary); reportError != nil {
		return fmt.Errorf(reportErrorTemplateConstant, reportError)
	}
	if saveError != nil {
		return fmt.Errorf(stateSaveErrorTemplateConstant, saveError)
	}

	if result.Summary.HasFailures() {
		return ErrProblematicRepositories
	}
	return nil
}

func (builder *CommandBuilder) collectTargets(executionContext context.Context, configuration CommandConfiguration, fileSystem afero.Fs, logger *zap.Logger) ([]Target, error) {
	if len(configuration.ComposerDirectory) > 0 {
		observer := dependencies.ResolveCommandEventObserver(logger, builder.humanReadableLogging())
		composerExecutor, executorError := dependencies.ResolveComposerExecutor(builder.ComposerExecutor, logger, observer)
		if executorError != nil {
			return nil, executorError
		}
		rawURLs, showError := composer.InstalledRepositoryURLs(executionContext, composerExecutor, configuration.ComposerDirectory, configuration.ComposerTimeout)
		if showError != nil {
			return nil, showError
		}
		return URLTargets(rawURLs, logger), nil
	}

	packages, readError := composer.NewLockReader(fileSystem).ReadPackages(configuration.LockFile)
	if readError != nil {
		return nil, readError
	}
	return LockTargets(packages, logger), nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) commandOptions {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	platforms := DefaultPlatformConfiguration()
	if builder.PlatformConfigurationProvider != nil {
		platforms = builder.PlatformConfigurationProvider()
	}

	commandFlags := command.Flags()
	if commandFlags.Changed(flagLockFileNameConstant) {
		configuration.LockFile, _ = commandFlags.GetString(flagLockFileNameConstant)
	}
	if commandFlags.Changed(flagComposerDirectoryNameConstant) {
		configuration.ComposerDirectory, _ = commandFlags.GetString(flagComposerDirectoryNameConstant)
	}
	if commandFlags.Changed(flagStateFileNameConstant) {
		configuration.StateFile, _ = commandFlags.GetString(flagStateFileNameConstant)
	}
	if commandFlags.Changed(flagForceAccessCheckNameConstant) {
		configuration.ForceAccessCheck, _ = commandFlags.GetBool(flagForceAccessCheckNameConstant)
	}
	if commandFlags.Changed(flagShowProblematicNameConstant) {
		configuration.ShowProblematic, _ = commandFlags.GetBool(flagShowProblematicNameConstant)
	}
	if commandFlags.Changed(flagReportFormatNameConstant) {
		configuration.ReportFormat, _ = commandFlags.GetString(flagReportFormatNameConstant)
	}

	debugEnabled, _ := commandFlags.GetBool(flagDebugNameConstant)
	if debugEnabled && builder.DebugActivator != nil {
		builder.DebugActivator()
	}

	singleURL, _ := commandFlags.GetString(flagAccessCheckNameConstant)
	clearAccessCache, _ := commandFlags.GetBool(flagClearAccessCacheNameConstant)

	return commandOptions{
		configuration:    configuration.sanitize(),
		platforms:        platforms.Sanitize(),
		singleURL:        strings.TrimSpace(singleURL),
		clearAccessCache: clearAccessCache,
	}
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
