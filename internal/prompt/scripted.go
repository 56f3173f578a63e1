package prompt

import "strings"

// ScriptedPrompter replays prepared answers. An exhausted script or an empty answer yields the default.
type ScriptedPrompter struct {
	Answers  []string
	Messages []string
}

// PromptChoice returns the next scripted answer.
func (prompter *ScriptedPrompter) PromptChoice(message string, options []Option, defaultKey string) (string, error) {
	answer := prompter.next(message)
	if len(answer) == 0 || !containsKey(options, answer) {
		return defaultKey, nil
	}
	return answer, nil
}

// PromptText returns the next scripted answer.
func (prompter *ScriptedPrompter) PromptText(message string, defaultValue string) (string, error) {
	answer := prompter.next(message)
	if len(answer) == 0 {
		return defaultValue, nil
	}
	return answer, nil
}

func (prompter *ScriptedPrompter) next(message string) string {
	prompter.Messages = append(prompter.Messages, message)
	if len(prompter.Answers) == 0 {
		return ""
	}
	answer := prompter.Answers[0]
	prompter.Answers = prompter.Answers[1:]
	return strings.TrimSpace(answer)
}

var _ Prompter = (*ScriptedPrompter)(nil)
