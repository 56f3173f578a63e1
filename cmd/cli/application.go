package cli

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/audit"
	"github.com/temirov/gitaccess/internal/changes"
	"github.com/temirov/gitaccess/internal/clone"
	"github.com/temirov/gitaccess/internal/utils"
)

const (
	applicationNameConstant                 = "gitaccess"
	applicationShortDescriptionConstant     = "Audit and use write access to the repositories of a Drupal project"
	applicationLongDescriptionConstant      = "gitaccess discovers the repositories behind composer.lock, classifies write access through the GitHub and GitLab APIs, caches the results and helps push local changes of contributed extensions upstream."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "GITACCESS"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	unusedConfigurationKeyMessageConstant   = "configuration key matches no setting and is ignored"
	configurationKeyFieldConstant           = "key"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "gitaccess CLI executed"
	rootCommandDebugMessageConstant         = "gitaccess CLI diagnostics"
	debugLoggingEnabledMessageConstant      = "debug logging enabled"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	toolsConfigurationKeyConstant           = "tools"
	accessConfigurationKeyConstant          = toolsConfigurationKeyConstant + ".access"
	changesConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".changes"
	cloneConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".clone"
	platformsConfigurationKeyConstant       = toolsConfigurationKeyConstant + ".platforms"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands and the hosting platforms they query.
type ApplicationToolsConfiguration struct {
	Platforms audit.PlatformConfiguration  `mapstructure:"platforms"`
	Access    audit.CommandConfiguration   `mapstructure:"access"`
	Changes   changes.CommandConfiguration `mapstructure:"changes"`
	Clone     clone.CommandConfiguration   `mapstructure:"clone"`
}

// defaultConfigurationYAML is the lowest configuration layer above the per-command defaults.
//
//go:embed default_config.yaml
var defaultConfigurationYAML []byte

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	loggerLevel           zap.AtomicLevel
	loggerLevelConfigured bool
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(defaultConfigurationYAML, configurationTypeConstant)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	accessBuilder := audit.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		DebugActivator:               application.activateDebugLogging,
		ConfigurationProvider: func() audit.CommandConfiguration {
			return application.configuration.Tools.Access
		},
		PlatformConfigurationProvider: application.platformConfiguration,
	}
	accessCommand, accessBuildError := accessBuilder.Build()
	if accessBuildError == nil {
		cobraCommand.AddCommand(accessCommand)
	}

	changesBuilder := changes.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		DebugActivator:               application.activateDebugLogging,
		ConfigurationProvider: func() changes.CommandConfiguration {
			return application.configuration.Tools.Changes
		},
		PlatformConfigurationProvider: application.platformConfiguration,
	}
	changesCommand, changesBuildError := changesBuilder.Build()
	if changesBuildError == nil {
		cobraCommand.AddCommand(changesCommand)
	}

	cloneBuilder := clone.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		DebugActivator:               application.activateDebugLogging,
		ConfigurationProvider: func() clone.CommandConfiguration {
			return application.configuration.Tools.Clone
		},
	}
	cloneCommand, cloneBuildError := cloneBuilder.Build()
	if cloneBuildError == nil {
		cobraCommand.AddCommand(cloneCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	defaultGroups := []map[string]any{
		audit.DefaultPlatformConfigurationValues(platformsConfigurationKeyConstant),
		audit.DefaultConfigurationValues(accessConfigurationKeyConstant),
		changes.DefaultConfigurationValues(changesConfigurationKeyConstant),
		clone.DefaultConfigurationValues(cloneConfigurationKeyConstant),
	}
	for _, defaultGroup := range defaultGroups {
		for configurationKey, configurationValue := range defaultGroup {
			defaultValues[configurationKey] = configurationValue
		}
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	application.loggerLevel = loggerOutputs.Level
	application.loggerLevelConfigured = true

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
	for _, unusedKey := range application.configurationMetadata.UnusedKeys {
		application.logger.Warn(
			unusedConfigurationKeyMessageConstant,
			zap.String(configurationKeyFieldConstant, unusedKey),
			zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		)
	}

	return nil
}

func (application *Application) platformConfiguration() audit.PlatformConfiguration {
	return application.configuration.Tools.Platforms
}

// activateDebugLogging raises the level of the already constructed logger for the current invocation.
func (application *Application) activateDebugLogging() {
	if !application.loggerLevelConfigured {
		return
	}
	application.loggerLevel.SetLevel(zap.DebugLevel)
	application.logger.Debug(debugLoggingEnabledMessageConstant)
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
