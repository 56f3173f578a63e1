package execshell

import (
	"strings"

	"go.uber.org/zap"
)

// CommandEventObserver is told about every git, composer and rsync invocation.
// Non-zero exits arrive through CommandCompleted. Start failures, cancellations and
// timeouts arrive through CommandExecutionFailed.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	CommandCompleted(command ShellCommand, result ExecutionResult)
	CommandExecutionFailed(command ShellCommand, failure error)
}

// structuredLogObserver is the executor's observer when none is supplied: one zap entry per event
// with the command, its arguments and working directory as fields.
type structuredLogObserver struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

func newStructuredLogObserver(logger *zap.Logger) structuredLogObserver {
	return structuredLogObserver{logger: logger, formatter: CommandMessageFormatter{}}
}

func (observer structuredLogObserver) CommandStarted(command ShellCommand) {
	observer.logger.Info(observer.formatter.BuildStartedMessage(command), commandFields(command)...)
}

func (observer structuredLogObserver) CommandCompleted(command ShellCommand, result ExecutionResult) {
	fields := append(commandFields(command), zap.Int(logFieldExitCodeConstant, result.ExitCode))
	if result.ExitCode == 0 {
		observer.logger.Info(observer.formatter.BuildSuccessMessage(command), fields...)
		return
	}
	fields = append(fields, zap.String(logFieldStandardErrorConstant, strings.TrimSpace(result.StandardError)))
	observer.logger.Warn(observer.formatter.BuildFailureMessage(command, result), fields...)
}

func (observer structuredLogObserver) CommandExecutionFailed(command ShellCommand, failure error) {
	fields := append(commandFields(command), zap.Error(failure))
	if command.Details.Timeout > 0 {
		fields = append(fields, zap.Duration(logFieldTimeoutConstant, command.Details.Timeout))
	}
	observer.logger.Error(observer.formatter.BuildExecutionFailureMessage(command, failure), fields...)
}

func commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}
