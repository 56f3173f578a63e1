package clone_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitaccess/internal/clone"
	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/prompt"
)

const (
	commandLockFileConstant = "site/composer.lock"
	commandLockContents     = `{"packages": [
  {"name": "acme/widget", "type": "drupal-module", "source": {"type": "git", "url": "https://github.com/acme/widget.git", "reference": "8.x-1.x"}}
], "packages-dev": [
  {"name": "acme/storefront", "type": "drupal-theme", "dist": {"type": "zip", "url": "https://gitlab.com/acme/storefront.git"}}
]}`
)

type commandFixture struct {
	fileSystem afero.Fs
	cloner     *fakeCloner
	rsync      *recordingRsyncExecutor
	prompter   *prompt.ScriptedPrompter
}

func newCommandFixture(testInstance *testing.T) *commandFixture {
	testInstance.Helper()
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, commandLockFileConstant, []byte(commandLockContents), 0o644))
	return &commandFixture{
		fileSystem: fileSystem,
		cloner:     &fakeCloner{fileSystem: fileSystem},
		rsync:      &recordingRsyncExecutor{fileSystem: fileSystem},
		prompter:   &prompt.ScriptedPrompter{},
	}
}

func (fixture *commandFixture) execute(testInstance *testing.T, arguments ...string) (string, error) {
	testInstance.Helper()
	builder := clone.CommandBuilder{
		ConfigurationProvider: func() clone.CommandConfiguration {
			configuration := clone.DefaultCommandConfiguration()
			configuration.LockFile = commandLockFileConstant
			configuration.Docroot = "site/docroot"
			configuration.RepositoriesRoot = "site/repos"
			return configuration
		},
		FileSystem:    fixture.fileSystem,
		Cloner:        fixture.cloner,
		RsyncExecutor: fixture.rsync,
		Prompter:      fixture.prompter,
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(arguments)
	command.SilenceUsage = true
	command.SilenceErrors = true
	executionError := command.Execute()
	return outputBuffer.String(), executionError
}

func TestCloneCommandAssumeYes(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)

	output, executionError := fixture.execute(testInstance, "-y")

	require.NoError(testInstance, executionError)
	require.Empty(testInstance, fixture.prompter.Messages)
	require.Contains(testInstance, output, "📁 Created directory: site/repos\n")
	require.Contains(testInstance, output, "➡️ Processing acme/storefront (drupal-theme)\n")
	require.Equal(testInstance, []string{
		"https://github.com/acme/widget.git -> site/repos/widget",
		"https://gitlab.com/acme/storefront.git -> site/repos/storefront",
	}, fixture.cloner.clones)
	require.Equal(testInstance, []string{"site/repos/widget@8.x-1.x"}, fixture.cloner.checkouts)
	require.Equal(testInstance, [][]string{
		{"-a", "site/repos/widget/.git/", "site/docroot/modules/contrib/widget/.git/"},
		{"-a", "site/repos/storefront/.git/", "site/docroot/themes/contrib/storefront/.git/"},
	}, fixture.rsync.calls)
}

func TestCloneCommandFlagsOverrideConfiguration(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)

	output, executionError := fixture.execute(testInstance, "--yes", "--dry-run", "--repositories-root", "checkouts", "--docroot", "web")

	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "🌱 [DRY-RUN] Would run: git clone https://github.com/acme/widget.git checkouts/widget\n")
	require.Contains(testInstance, output, "📋 [DRY-RUN] Would run: rsync -a checkouts/widget/.git/ web/modules/contrib/widget/.git/\n")
	require.Empty(testInstance, fixture.cloner.clones)
	require.Empty(testInstance, fixture.rsync.calls)
}

func TestCloneCommandCancelIsNotAnError(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	fixture.prompter.Answers = []string{"y", "c"}

	output, executionError := fixture.execute(testInstance)

	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "🛑 Cancelled.\n")
	require.NotContains(testInstance, output, "All done.")
	require.Empty(testInstance, fixture.cloner.clones)
}

func TestCloneCommandReportsErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedError error
		expectedText  string
	}{
		{name: "missing_lock_file", arguments: []string{"--lock-file", "absent/composer.lock"}, expectedError: composer.ErrLockFileMissing},
		{name: "positional_arguments", arguments: []string{"extra"}, expectedText: "clone does not accept positional arguments"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			fixture := newCommandFixture(testInstance)

			_, executionError := fixture.execute(testInstance, testCase.arguments...)

			require.Error(testInstance, executionError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectedError)
			}
			if len(testCase.expectedText) > 0 {
				require.ErrorContains(testInstance, executionError, testCase.expectedText)
			}
		})
	}
}
