// Package prompt provides the operator question capability used by the interactive workflows.
package prompt
