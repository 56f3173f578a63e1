// Package flags provides shared flag names and usage helpers for Cobra commands.
package flags

import "github.com/spf13/cobra"

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Preview operations without making changes"
	// AssumeYesFlagName exposes the shared assume-yes flag name.
	AssumeYesFlagName = "yes"
	// AssumeYesFlagShorthand provides the shorthand for the assume-yes flag.
	AssumeYesFlagShorthand = "y"
	// AssumeYesFlagUsage describes the shared assume-yes flag purpose.
	AssumeYesFlagUsage = "Automatically confirm prompts"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	DryRun    bool
	AssumeYes bool
}

// ExecutionFlagValues reports the execution flags and whether each was set on the command line.
type ExecutionFlagValues struct {
	DryRun       bool
	DryRunSet    bool
	AssumeYes    bool
	AssumeYesSet bool
}

// BindExecutionFlags attaches --dry-run and --yes to the provided command.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) {
	if command == nil {
		return
	}
	flagSet := command.Flags()
	if flagSet.Lookup(DryRunFlagName) == nil {
		flagSet.Bool(DryRunFlagName, defaults.DryRun, DryRunFlagUsage)
	}
	if flagSet.Lookup(AssumeYesFlagName) == nil {
		flagSet.BoolP(AssumeYesFlagName, AssumeYesFlagShorthand, defaults.AssumeYes, AssumeYesFlagUsage)
	}
}

// ResolveExecutionFlags reads the execution flags bound by BindExecutionFlags.
func ResolveExecutionFlags(command *cobra.Command) ExecutionFlagValues {
	var values ExecutionFlagValues
	if command == nil {
		return values
	}
	flagSet := command.Flags()
	if flagSet.Lookup(DryRunFlagName) != nil {
		values.DryRun, _ = flagSet.GetBool(DryRunFlagName)
		values.DryRunSet = flagSet.Changed(DryRunFlagName)
	}
	if flagSet.Lookup(AssumeYesFlagName) != nil {
		values.AssumeYes, _ = flagSet.GetBool(AssumeYesFlagName)
		values.AssumeYesSet = flagSet.Changed(AssumeYesFlagName)
	}
	return values
}
