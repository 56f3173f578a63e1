// Package cli constructs the gitaccess command-line interface, wiring the
// Cobra command hierarchy, the layered configuration loader and structured
// logging. It exposes helpers to build application instances and to execute
// the default command set.
package cli
