package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var reviewOptions = []Option{
	{Key: "a", Description: "add"},
	{Key: "s", Description: "skip"},
	{Key: "n", Description: "next"},
	{Key: "q", Description: "quit"},
}

func TestIOPrompterPromptChoice(testInstance *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedKey    string
		expectedOutput string
		expectError    bool
	}{
		{name: "explicit_answer", input: "a\n", expectedKey: "a", expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] "},
		{name: "uppercase_answer", input: " Q \n", expectedKey: "q", expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] "},
		{name: "empty_selects_default", input: "\n", expectedKey: "n", expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] "},
		{name: "closed_input_selects_default", input: "", expectedKey: "n", expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] "},
		{name: "invalid_then_valid", input: "x\ns\n", expectedKey: "s", expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] Invalid option. Action? [a=add, s=skip, n=next, q=quit] "},
		{name: "invalid_then_closed", input: "x", expectError: true, expectedOutput: "Action? [a=add, s=skip, n=next, q=quit] "},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			output := &bytes.Buffer{}
			prompter := NewIOPrompter(strings.NewReader(testCase.input), output)

			key, promptError := prompter.PromptChoice("Action?", reviewOptions, "n")
			if testCase.expectError {
				require.ErrorIs(testInstance, promptError, ErrInputClosed)
			} else {
				require.NoError(testInstance, promptError)
				require.Equal(testInstance, testCase.expectedKey, key)
			}
			require.Equal(testInstance, testCase.expectedOutput, output.String())
		})
	}
}

func TestIOPrompterRejectsUnknownDefault(testInstance *testing.T) {
	prompter := NewIOPrompter(strings.NewReader("a\n"), nil)
	_, promptError := prompter.PromptChoice("Action?", reviewOptions, "z")
	require.Error(testInstance, promptError)
}

func TestIOPrompterPromptText(testInstance *testing.T) {
	output := &bytes.Buffer{}
	prompter := NewIOPrompter(strings.NewReader("\n  feature-x  \n"), output)

	defaulted, firstError := prompter.PromptText("Enter branch name", "upgrade-drupal11-20240102_030405")
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, "upgrade-drupal11-20240102_030405", defaulted)

	provided, secondError := prompter.PromptText("Enter branch name", "upgrade-drupal11-20240102_030405")
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "feature-x", provided)

	require.Equal(testInstance, strings.Repeat("Enter branch name [default: upgrade-drupal11-20240102_030405]: ", 2), output.String())
}

func TestScriptedPrompterReplaysAnswers(testInstance *testing.T) {
	prompter := &ScriptedPrompter{Answers: []string{"a", "zz", "feature"}}

	first, _ := prompter.PromptChoice("Action?", reviewOptions, "n")
	second, _ := prompter.PromptChoice("Action?", reviewOptions, "n")
	text, _ := prompter.PromptText("Branch", "default-branch")
	exhausted, _ := prompter.PromptText("Message", "default-message")

	require.Equal(testInstance, "a", first)
	require.Equal(testInstance, "n", second)
	require.Equal(testInstance, "feature", text)
	require.Equal(testInstance, "default-message", exhausted)
	require.Equal(testInstance, []string{"Action?", "Action?", "Branch", "Message"}, prompter.Messages)
}
