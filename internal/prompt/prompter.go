package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	optionSeparatorConstant           = ", "
	optionTemplateConstant            = "%s=%s"
	choicePromptTemplateConstant      = "%s [%s] "
	textPromptTemplateConstant        = "%s [default: %s]: "
	invalidOptionMessageConstant      = "Invalid option. "
	inputClosedMessageConstant        = "prompt input closed"
	unknownDefaultKeyTemplateConstant = "default key %q is not an option"
)

// ErrInputClosed indicates the input stream ended before a usable answer was read.
var ErrInputClosed = errors.New(inputClosedMessageConstant)

// Option is one selectable answer.
type Option struct {
	Key         string
	Description string
}

// Prompter asks the operator questions.
type Prompter interface {
	PromptChoice(message string, options []Option, defaultKey string) (string, error)
	PromptText(message string, defaultValue string) (string, error)
}

// IOPrompter reads answers line by line from an input stream.
type IOPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewIOPrompter constructs a prompter from the provided reader and writer.
func NewIOPrompter(input io.Reader, output io.Writer) *IOPrompter {
	if output == nil {
		output = io.Discard
	}
	return &IOPrompter{reader: bufio.NewReader(input), writer: output}
}

// PromptChoice repeats the question until the answer names an option. An empty answer selects defaultKey.
func (prompter *IOPrompter) PromptChoice(message string, options []Option, defaultKey string) (string, error) {
	if len(defaultKey) > 0 && !containsKey(options, defaultKey) {
		return "", fmt.Errorf(unknownDefaultKeyTemplateConstant, defaultKey)
	}
	renderedOptions := make([]string, 0, len(options))
	for _, option := range options {
		renderedOptions = append(renderedOptions, fmt.Sprintf(optionTemplateConstant, option.Key, option.Description))
	}

	for {
		if _, writeError := fmt.Fprintf(prompter.writer, choicePromptTemplateConstant, message, strings.Join(renderedOptions, optionSeparatorConstant)); writeError != nil {
			return "", writeError
		}
		answer, inputClosed, readError := prompter.readAnswer()
		if readError != nil {
			return "", readError
		}
		answer = strings.ToLower(answer)
		if len(answer) == 0 && len(defaultKey) > 0 {
			return defaultKey, nil
		}
		if containsKey(options, answer) {
			return answer, nil
		}
		if inputClosed {
			return "", ErrInputClosed
		}
		if _, writeError := io.WriteString(prompter.writer, invalidOptionMessageConstant); writeError != nil {
			return "", writeError
		}
	}
}

// PromptText returns the trimmed answer, or defaultValue when the answer is empty.
func (prompter *IOPrompter) PromptText(message string, defaultValue string) (string, error) {
	if _, writeError := fmt.Fprintf(prompter.writer, textPromptTemplateConstant, message, defaultValue); writeError != nil {
		return "", writeError
	}
	answer, _, readError := prompter.readAnswer()
	if readError != nil {
		return "", readError
	}
	if len(answer) == 0 {
		return defaultValue, nil
	}
	return answer, nil
}

func (prompter *IOPrompter) readAnswer() (string, bool, error) {
	line, readError := prompter.reader.ReadString('\n')
	if readError != nil && !errors.Is(readError, io.EOF) {
		return "", false, readError
	}
	return strings.TrimSpace(line), readError != nil, nil
}

func containsKey(options []Option, key string) bool {
	for _, option := range options {
		if option.Key == key {
			return true
		}
	}
	return false
}

var _ Prompter = (*IOPrompter)(nil)
