package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorEnabledFor reports whether writer is a color-capable terminal.
func ColorEnabledFor(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile || color.NoColor {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
