// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with lifecycle logging and typed errors,
// OSCommandRunner executes processes through os/exec, and the wrappers for git,
// composer and rsync keep callers free of raw process handling so that every
// workflow can be exercised with a recording runner in tests.
package execshell
