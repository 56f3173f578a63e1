package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	failureDetailsTemplateConstant          = " (exit code %d%s)"
	executionFailureDetailsTemplateConstant = ": %s"
)

const (
	gitStatusSubcommandNameConstant       = "status"
	gitDiffSubcommandNameConstant         = "diff"
	gitAddSubcommandNameConstant          = "add"
	gitCheckoutSubcommandNameConstant     = "checkout"
	gitCommitSubcommandNameConstant       = "commit"
	gitPushSubcommandNameConstant         = "push"
	gitRemoteSubcommandNameConstant       = "remote"
	gitCloneSubcommandNameConstant        = "clone"
	gitCachedFlagConstant                 = "--cached"
	gitCreateBranchFlagConstant           = "-b"
	gitMessageFlagConstant                = "-m"
	composerShowSubcommandNameConstant    = "show"
	commitMessagePreviewLengthConstant    = 60
	commitMessageTruncationSuffixConstant = "..."
)

type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitStatusTemplates = stageTemplates{
		start:            "Reviewing working tree status in %s",
		success:          "Collected working tree status for %s",
		failure:          "Failed to review working tree status in %s",
		executionFailure: "Unable to review working tree status in %s",
	}
	gitDiffTemplates = stageTemplates{
		start:            "Collecting unstaged changes in %s",
		success:          "Collected unstaged changes in %s",
		failure:          "Failed to collect unstaged changes in %s",
		executionFailure: "Unable to collect unstaged changes in %s",
	}
	gitStagedDiffTemplates = stageTemplates{
		start:            "Listing staged files in %s",
		success:          "Listed staged files in %s",
		failure:          "Failed to list staged files in %s",
		executionFailure: "Unable to list staged files in %s",
	}
	gitAddTemplates = stageTemplates{
		start:            "Staging %s in %s",
		success:          "Staged %s in %s",
		failure:          "Failed to stage %s in %s",
		executionFailure: "Unable to stage %s in %s",
	}
	gitBranchCreationTemplates = stageTemplates{
		start:            "Creating branch %s in %s",
		success:          "Created branch %s in %s",
		failure:          "Failed to create branch %s in %s",
		executionFailure: "Unable to create branch %s in %s",
	}
	gitCheckoutTemplates = stageTemplates{
		start:            "Checking out %s in %s",
		success:          "Checked out %s in %s",
		failure:          "Failed to check out %s in %s",
		executionFailure: "Unable to check out %s in %s",
	}
	gitCommitTemplates = stageTemplates{
		start:            "Creating commit %q in %s",
		success:          "Created commit %q in %s",
		failure:          "Failed to create commit %q in %s",
		executionFailure: "Unable to create commit %q in %s",
	}
	gitPushTemplates = stageTemplates{
		start:            "Pushing %s to %s from %s",
		success:          "Pushed %s to %s from %s",
		failure:          "Failed to push %s to %s from %s",
		executionFailure: "Unable to push %s to %s from %s",
	}
	gitRemoteTemplates = stageTemplates{
		start:            "Reading %s remote in %s",
		success:          "Read %s remote in %s",
		failure:          "Failed to read %s remote in %s",
		executionFailure: "Unable to read %s remote in %s",
	}
	gitCloneTemplates = stageTemplates{
		start:            "Cloning %s into %s",
		success:          "Cloned %s into %s",
		failure:          "Failed to clone %s into %s",
		executionFailure: "Unable to clone %s into %s",
	}
	composerShowTemplates = stageTemplates{
		start:            "Listing installed composer packages in %s",
		success:          "Listed installed composer packages in %s",
		failure:          "Failed to list installed composer packages in %s",
		executionFailure: "Unable to list installed composer packages in %s",
	}
	rsyncTemplates = stageTemplates{
		start:            "Synchronizing %s to %s",
		success:          "Synchronized %s to %s",
		failure:          "Failed to synchronize %s to %s",
		executionFailure: "Unable to synchronize %s to %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	templates, values, described := formatter.describe(command)
	if !described {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, values...) + fmt.Sprintf(failureDetailsTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, values...) + fmt.Sprintf(executionFailureDetailsTemplateConstant, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) (stageTemplates, []any, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return stageTemplates{}, nil, false
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(arguments[0])

	switch command.Name {
	case CommandGit:
		return formatter.describeGit(subcommand, arguments, workingDirectory)
	case CommandComposer:
		if subcommand == composerShowSubcommandNameConstant {
			return composerShowTemplates, []any{workingDirectory}, true
		}
	case CommandRsync:
		positional := formatter.positionalArguments(arguments)
		if len(positional) >= 2 {
			return rsyncTemplates, []any{positional[len(positional)-2], positional[len(positional)-1]}, true
		}
	}

	return stageTemplates{}, nil, false
}

func (formatter CommandMessageFormatter) describeGit(subcommand string, arguments []string, workingDirectory string) (stageTemplates, []any, bool) {
	switch subcommand {
	case gitStatusSubcommandNameConstant:
		return gitStatusTemplates, []any{workingDirectory}, true
	case gitDiffSubcommandNameConstant:
		if containsArgument(arguments, gitCachedFlagConstant) {
			return gitStagedDiffTemplates, []any{workingDirectory}, true
		}
		return gitDiffTemplates, []any{workingDirectory}, true
	case gitAddSubcommandNameConstant:
		return gitAddTemplates, []any{formatter.ensureValue(formatter.lastPositionalArgument(arguments[1:])), workingDirectory}, true
	case gitCheckoutSubcommandNameConstant:
		target := formatter.ensureValue(formatter.lastPositionalArgument(arguments[1:]))
		if containsArgument(arguments, gitCreateBranchFlagConstant) {
			return gitBranchCreationTemplates, []any{target, workingDirectory}, true
		}
		return gitCheckoutTemplates, []any{target, workingDirectory}, true
	case gitCommitSubcommandNameConstant:
		return gitCommitTemplates, []any{formatter.extractCommitMessage(arguments), workingDirectory}, true
	case gitPushSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		remote := fallbackUnknownValueLabelConstant
		branch := fallbackUnknownValueLabelConstant
		if len(positional) > 0 {
			remote = positional[0]
		}
		if len(positional) > 1 {
			branch = positional[1]
		}
		return gitPushTemplates, []any{branch, remote, workingDirectory}, true
	case gitRemoteSubcommandNameConstant:
		return gitRemoteTemplates, []any{formatter.ensureValue(formatter.lastPositionalArgument(arguments[1:])), workingDirectory}, true
	case gitCloneSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		if len(positional) < 2 {
			return stageTemplates{}, nil, false
		}
		return gitCloneTemplates, []any{positional[0], positional[1]}, true
	default:
		return stageTemplates{}, nil, false
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = commandLabel + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	workingDirectorySuffix := emptyStringConstant
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) > 0 {
		workingDirectorySuffix = fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// positionalArguments drops flags. A flag value following -m or -b is dropped too.
func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if skipNext {
			skipNext = false
			continue
		}
		if len(trimmed) == 0 {
			continue
		}
		if trimmed == gitMessageFlagConstant {
			skipNext = true
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}

func (formatter CommandMessageFormatter) lastPositionalArgument(arguments []string) string {
	positional := formatter.positionalArguments(arguments)
	if len(positional) == 0 {
		return emptyStringConstant
	}
	return positional[len(positional)-1]
}

func (formatter CommandMessageFormatter) extractCommitMessage(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == gitMessageFlagConstant && index+1 < len(arguments) {
			message := strings.TrimSpace(arguments[index+1])
			if len(message) > commitMessagePreviewLengthConstant {
				return message[:commitMessagePreviewLengthConstant] + commitMessageTruncationSuffixConstant
			}
			return message
		}
	}
	return fallbackUnknownValueLabelConstant
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}
