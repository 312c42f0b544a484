package testbed

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/anima-rt/engine"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestTestGamePrintsDemoScene(t *testing.T) {
	var out bytes.Buffer
	tg := NewTestGame("../assets/scenes/demo.rtscene", false, &out)

	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	require.NoError(t, e.Shutdown())

	assert.Equal(t, "offline", tg.state().device.DeviceName())
	assert.Equal(t, 1, tg.state().uploads)

	s := out.String()
	assert.Contains(t, s, "TLAS 'demo-tlas' (per_geometry): 3 instances, 8 hit group records")
	assert.Contains(t, s, "glass0")
	assert.Contains(t, s, "SBT upload #1: 704 bytes")
	assert.Contains(t, s, "copy src=192 dst=192 size=512")
}
