package execshell

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandMessageFormatterStartedMessages(testInstance *testing.T) {
	testCases := []struct {
		name            string
		command         ShellCommand
		expectedMessage string
	}{
		{
			name:            "status",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"status", "-s"}, WorkingDirectory: "/workspace/widget"}},
			expectedMessage: "Reviewing working tree status in /workspace/widget",
		},
		{
			name:            "staged_diff",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"diff", "--cached", "--name-only"}, WorkingDirectory: "/workspace/widget"}},
			expectedMessage: "Listing staged files in /workspace/widget",
		},
		{
			name:            "branch_creation",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"checkout", "-b", "upgrade-drupal11-20240102_030405"}, WorkingDirectory: "/workspace/widget"}},
			expectedMessage: "Creating branch upgrade-drupal11-20240102_030405 in /workspace/widget",
		},
		{
			name:            "commit",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"commit", "-m", "Drupal 11 upgrade: staged changes"}}},
			expectedMessage: "Creating commit \"Drupal 11 upgrade: staged changes\" in current directory",
		},
		{
			name:            "push",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"push", "-u", "git@github.com:acme/widget.git", "feature"}, WorkingDirectory: "/workspace/widget"}},
			expectedMessage: "Pushing feature to git@github.com:acme/widget.git from /workspace/widget",
		},
		{
			name:            "clone",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"clone", "https://github.com/acme/widget.git", "repos/widget"}}},
			expectedMessage: "Cloning https://github.com/acme/widget.git into repos/widget",
		},
		{
			name:            "composer_show",
			command:         ShellCommand{Name: CommandComposer, Details: CommandDetails{Arguments: []string{"show", "--installed", "--format=json"}, WorkingDirectory: "distribution"}},
			expectedMessage: "Listing installed composer packages in distribution",
		},
		{
			name:            "rsync",
			command:         ShellCommand{Name: CommandRsync, Details: CommandDetails{Arguments: []string{"-a", "--delete", "repos/widget/.git/", "docroot/modules/contrib/widget/.git/"}}},
			expectedMessage: "Synchronizing repos/widget/.git/ to docroot/modules/contrib/widget/.git/",
		},
		{
			name:            "generic",
			command:         ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"--version"}, WorkingDirectory: "."}},
			expectedMessage: "Running git --version (in .)",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			formatter := CommandMessageFormatter{}
			require.Equal(testInstance, testCase.expectedMessage, formatter.BuildStartedMessage(testCase.command))
		})
	}
}

func TestCommandMessageFormatterFailureMessagesIncludeDetails(testInstance *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"add", "--", "src/Widget.php"}, WorkingDirectory: "/workspace/widget"}}

	failureMessage := formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 128, StandardError: "fatal: pathspec did not match\n"})
	require.Equal(testInstance, "Failed to stage src/Widget.php in /workspace/widget (exit code 128: fatal: pathspec did not match)", failureMessage)

	executionFailureMessage := formatter.BuildExecutionFailureMessage(command, errors.New("interrupted"))
	require.Equal(testInstance, "Unable to stage src/Widget.php in /workspace/widget: interrupted", executionFailureMessage)

	require.Equal(testInstance, "Unable to stage src/Widget.php in /workspace/widget: unknown error", formatter.BuildExecutionFailureMessage(command, nil))
}
