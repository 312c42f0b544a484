package core

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)
	defer SetLogLevel("info")

	require.NoError(t, SetLogLevel("warn"))
	LogInfo("hidden %d", 1)
	assert.Empty(t, buf.String())

	LogWarn("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	assert.Error(t, SetLogLevel("loud"))
}
