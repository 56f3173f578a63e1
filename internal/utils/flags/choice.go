package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	choicePlaceholderTemplate    = "`<%s>`"
	choiceUsageTemplate          = "%s %s"
	choiceSeparatorLiteral       = "|"
	unsupportedChoiceTemplate    = "unsupported --%s value %q (expected %s)"
	unsupportedChoiceUnnamedFlag = "choice"
)

// ChoiceFlag is a string flag restricted to a fixed set of lower-case values.
type ChoiceFlag struct {
	Name        string
	Choices     []string
	Description string
}

// UnsupportedChoiceError reports a value outside the flag's choices.
type UnsupportedChoiceError struct {
	Flag    string
	Value   string
	Choices []string
}

func (choiceError UnsupportedChoiceError) Error() string {
	flagName := choiceError.Flag
	if len(flagName) == 0 {
		flagName = unsupportedChoiceUnnamedFlag
	}
	return fmt.Sprintf(unsupportedChoiceTemplate, flagName, choiceError.Value, strings.Join(choiceError.Choices, choiceSeparatorLiteral))
}

// Bind registers the flag on command. The usage string lists the choices with the default upper-cased.
func (choiceFlag ChoiceFlag) Bind(command *cobra.Command, defaultChoice string) {
	if command == nil {
		return
	}
	command.Flags().String(choiceFlag.Name, defaultChoice, choiceFlag.Usage(defaultChoice))
}

// Usage renders the placeholder, e.g. `<TEXT|json|yaml>`, followed by the description.
func (choiceFlag ChoiceFlag) Usage(defaultChoice string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	displayed := make([]string, 0, len(choiceFlag.Choices))
	for _, choice := range choiceFlag.normalizedChoices() {
		if choice == normalizedDefault {
			choice = strings.ToUpper(choice)
		}
		displayed = append(displayed, choice)
	}
	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayed, choiceSeparatorLiteral))
	description := strings.TrimSpace(choiceFlag.Description)
	if len(description) == 0 {
		return placeholder
	}
	return fmt.Sprintf(choiceUsageTemplate, placeholder, description)
}

// Normalize trims and lower-cases value and rejects anything outside the choices.
func (choiceFlag ChoiceFlag) Normalize(value string) (string, error) {
	normalized := normalizeChoice(value)
	choices := choiceFlag.normalizedChoices()
	for _, choice := range choices {
		if choice == normalized {
			return normalized, nil
		}
	}
	return "", UnsupportedChoiceError{Flag: choiceFlag.Name, Value: value, Choices: choices}
}

func (choiceFlag ChoiceFlag) normalizedChoices() []string {
	normalized := make([]string, 0, len(choiceFlag.Choices))
	seen := make(map[string]struct{}, len(choiceFlag.Choices))
	for _, choice := range choiceFlag.Choices {
		candidate := normalizeChoice(choice)
		if len(candidate) == 0 {
			continue
		}
		if _, duplicate := seen[candidate]; duplicate {
			continue
		}
		seen[candidate] = struct{}{}
		normalized = append(normalized, candidate)
	}
	return normalized
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
