package ui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitaccess/internal/ui"
)

func TestColorEnabledForRequiresTerminalFile(testInstance *testing.T) {
	require.False(testInstance, ui.ColorEnabledFor(&bytes.Buffer{}))
	require.False(testInstance, ui.ColorEnabledFor(nil))
}
