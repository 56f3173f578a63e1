package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

const (
	environmentAssignmentTemplateConstant = "%s=%s"
	commandTimeoutTemplateConstant        = "%s did not finish within %s"
	// processWaitDelayConstant bounds how long Run waits for output pipes after the process is killed.
	processWaitDelayConstant = 2 * time.Second
)

// CommandTimeoutError reports a command stopped because it ran past CommandDetails.Timeout.
// The partial output collected before the kill is kept in Result.
type CommandTimeoutError struct {
	Command ShellCommand
	Timeout time.Duration
	Result  ExecutionResult
}

func (timeoutError CommandTimeoutError) Error() string {
	return fmt.Sprintf(commandTimeoutTemplateConstant, describeCommand(timeoutError.Command), timeoutError.Timeout)
}

// Unwrap lets callers match the timeout with errors.Is(err, context.DeadlineExceeded).
func (timeoutError CommandTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// OSCommandRunner starts git, composer and rsync as child processes.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs an OSCommandRunner.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run starts the process and waits for it. A non-zero exit is returned as a result, not an error.
// The process is killed when executionContext ends or the command's Timeout elapses.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	runContext := executionContext
	if command.Details.Timeout > 0 {
		var cancel context.CancelFunc
		runContext, cancel = context.WithTimeout(executionContext, command.Details.Timeout)
		defer cancel()
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	process := buildProcess(runContext, command)
	process.Stdout = &standardOutput
	process.Stderr = &standardError

	runError := process.Run()
	result := ExecutionResult{StandardOutput: standardOutput.String(), StandardError: standardError.String()}

	if runError != nil && executionContext.Err() == nil && errors.Is(runContext.Err(), context.DeadlineExceeded) {
		return ExecutionResult{}, CommandTimeoutError{Command: command, Timeout: command.Details.Timeout, Result: result}
	}
	if runError != nil && executionContext.Err() != nil {
		return ExecutionResult{}, executionContext.Err()
	}

	var exitError *exec.ExitError
	switch {
	case runError == nil:
		return result, nil
	case errors.As(runError, &exitError):
		result.ExitCode = exitError.ExitCode()
		return result, nil
	default:
		return ExecutionResult{}, runError
	}
}

func buildProcess(runContext context.Context, command ShellCommand) *exec.Cmd {
	process := exec.CommandContext(runContext, string(command.Name), append([]string{}, command.Details.Arguments...)...)
	process.WaitDelay = processWaitDelayConstant
	if len(command.Details.WorkingDirectory) > 0 {
		process.Dir = command.Details.WorkingDirectory
	}
	if len(command.Details.EnvironmentVariables) > 0 {
		environment := os.Environ()
		for key, value := range command.Details.EnvironmentVariables {
			environment = append(environment, fmt.Sprintf(environmentAssignmentTemplateConstant, key, value))
		}
		process.Env = environment
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}
	return process
}
