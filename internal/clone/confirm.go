package clone

import (
	"fmt"
	"io"

	"github.com/temirov/gitaccess/internal/prompt"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

// Decision is the operator's answer to a confirmation.
type Decision int

const (
	// DecisionYes performs the action.
	DecisionYes Decision = iota
	// DecisionNo skips the action.
	DecisionNo
	// DecisionSkip skips the action and moves on to the next package.
	DecisionSkip
	// DecisionCancel stops the whole workflow.
	DecisionCancel
)

const (
	answerYesConstant        = "y"
	answerNoConstant         = "n"
	answerSkipConstant       = "s"
	answerCancelConstant     = "c"
	answerAllConstant        = "a"
	automaticAnswerTemplate  = "%s %s [y/n/s/c/a] y (auto)\n"
	confirmationIconConstant = "❓"
)

var confirmationOptions = []prompt.Option{
	{Key: answerYesConstant, Description: "yes"},
	{Key: answerNoConstant, Description: "no"},
	{Key: answerSkipConstant, Description: "skip package"},
	{Key: answerCancelConstant, Description: "cancel"},
	{Key: answerAllConstant, Description: "yes to all"},
}

// Confirmer asks y/n/s/c/a questions and remembers a yes-to-all answer.
type Confirmer struct {
	prompter prompt.Prompter
	policy   shared.ConfirmationPolicy
	output   io.Writer
	applyAll bool
}

// NewConfirmer constructs a Confirmer. The assume-yes policy answers every question without prompting.
func NewConfirmer(prompter prompt.Prompter, policy shared.ConfirmationPolicy, output io.Writer) *Confirmer {
	if output == nil {
		output = io.Discard
	}
	return &Confirmer{prompter: prompter, policy: policy, output: output}
}

// Confirm asks message unless a yes-to-all answer was given earlier.
func (confirmer *Confirmer) Confirm(message string, defaultKey string) (Decision, error) {
	if confirmer.applyAll {
		return DecisionYes, nil
	}
	return confirmer.ConfirmEach(message, defaultKey)
}

// ConfirmEach asks message even after a yes-to-all answer. Only the assume-yes policy bypasses it.
func (confirmer *Confirmer) ConfirmEach(message string, defaultKey string) (Decision, error) {
	if !confirmer.policy.ShouldPrompt() {
		fmt.Fprintf(confirmer.output, automaticAnswerTemplate, confirmationIconConstant, message)
		return DecisionYes, nil
	}

	answer, promptError := confirmer.prompter.PromptChoice(confirmationIconConstant+" "+message, confirmationOptions, defaultKey)
	if promptError != nil {
		return DecisionCancel, promptError
	}
	switch answer {
	case answerYesConstant:
		return DecisionYes, nil
	case answerAllConstant:
		confirmer.applyAll = true
		return DecisionYes, nil
	case answerSkipConstant:
		return DecisionSkip, nil
	case answerCancelConstant:
		return DecisionCancel, nil
	default:
		return DecisionNo, nil
	}
}
