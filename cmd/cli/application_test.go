package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = `common:
  log_format: console
tools:
  platforms:
    request_delay: 0s
  clone:
    repositories_root: checkouts
  access:
    report_format: yaml
    report_fromat: json
`
)

func TestApplicationRegistersWorkflowCommands(testInstance *testing.T) {
	application := NewApplication()

	registeredNames := make([]string, 0)
	for _, subcommand := range application.rootCommand.Commands() {
		registeredNames = append(registeredNames, subcommand.Name())
	}

	require.Subset(testInstance, registeredNames, []string{"access", "changes", "clone"})
}

func TestApplicationLoadsEmbeddedDefaults(testInstance *testing.T) {
	changeWorkingDirectory(testInstance, testInstance.TempDir())
	application := NewApplication()

	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, 50*time.Millisecond, configuration.Tools.Platforms.RequestDelay)
	require.Equal(testInstance, []string{"env:GITHUB_TOKEN"}, configuration.Tools.Platforms.GitHubTokenSources)
	require.Equal(testInstance, "docs_generation_state.json", configuration.Tools.Access.StateFile)
	require.Len(testInstance, configuration.Tools.Access.SizeCheckTargets, 2)
	require.Equal(testInstance, 120*time.Second, configuration.Tools.Access.ComposerTimeout)
	require.Equal(testInstance, "upgrade-drupal11-", configuration.Tools.Changes.BranchPrefix)
	require.Equal(testInstance, "repo_access_cache.json", configuration.Tools.Changes.StateFile)
	require.Equal(testInstance, "repos", configuration.Tools.Clone.RepositoriesRoot)
	require.False(testInstance, application.humanReadableLoggingEnabled())
	require.Empty(testInstance, application.configurationMetadata.UnusedKeys)
}

func TestApplicationConfigurationLayers(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	changeWorkingDirectory(testInstance, workingDirectory)
	configurationPath := filepath.Join(workingDirectory, testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))
	testInstance.Setenv("GITACCESS_TOOLS_CHANGES_BRANCH_PREFIX", "hotfix-")

	application := NewApplication()
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)
	require.True(testInstance, application.humanReadableLoggingEnabled())
	require.Equal(testInstance, time.Duration(0), configuration.Tools.Platforms.RequestDelay)
	require.Equal(testInstance, "https://git.drupalcode.org", configuration.Tools.Platforms.GitLabBaseURL)
	require.Equal(testInstance, "checkouts", configuration.Tools.Clone.RepositoriesRoot)
	require.Equal(testInstance, "composer.lock", configuration.Tools.Clone.LockFile)
	require.Equal(testInstance, "yaml", configuration.Tools.Access.ReportFormat)
	require.Equal(testInstance, "hotfix-", configuration.Tools.Changes.BranchPrefix)
	require.Equal(testInstance, []string{"tools.access.report_fromat"}, application.configurationMetadata.UnusedKeys)
}

func TestApplicationLogFlagsAndDebugActivation(testInstance *testing.T) {
	changeWorkingDirectory(testInstance, testInstance.TempDir())
	application := NewApplication()
	rootCommand := application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "warn"))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, "console"))

	require.NoError(testInstance, application.initializeConfiguration(rootCommand))

	require.Equal(testInstance, zapcore.WarnLevel, application.loggerLevel.Level())
	require.True(testInstance, application.humanReadableLoggingEnabled())

	application.activateDebugLogging()
	require.Equal(testInstance, zapcore.DebugLevel, application.loggerLevel.Level())
}

func TestApplicationRejectsUnknownLogLevel(testInstance *testing.T) {
	changeWorkingDirectory(testInstance, testInstance.TempDir())
	application := NewApplication()
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	initializationError := application.initializeConfiguration(application.rootCommand)

	require.ErrorContains(testInstance, initializationError, "unable to create logger")
}

func TestActivateDebugLoggingBeforeInitializationIsIgnored(testInstance *testing.T) {
	application := NewApplication()

	require.NotPanics(testInstance, application.activateDebugLogging)
}

// changeWorkingDirectory switches into directory for the duration of the test.
func changeWorkingDirectory(testInstance *testing.T, directory string) {
	testInstance.Helper()
	originalDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NoError(testInstance, os.Chdir(directory))
	testInstance.Cleanup(func() {
		require.NoError(testInstance, os.Chdir(originalDirectory))
	})
}
