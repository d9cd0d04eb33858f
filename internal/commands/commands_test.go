package commands

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/machine"
)

func TestHandleLineRunsAStatementAgainstTheHandlersEngine(t *testing.T) {
	h := NewHandler(machine.DefaultConfig(), zerolog.Nop())
	require.NoError(t, h.HandleLine("x := reg"))
	require.NoError(t, h.HandleLine("init x 5"))
}

func TestHandleLineRejectsUnknownStatement(t *testing.T) {
	h := NewHandler(machine.DefaultConfig(), zerolog.Nop())
	err := h.HandleLine("bogus statement")
	assert.Error(t, err)
}

func TestEngineExposesTheUnderlyingMachine(t *testing.T) {
	h := NewHandler(machine.DefaultConfig(), zerolog.Nop())
	require.NoError(t, h.HandleLine("x := reg"))
	require.NoError(t, h.HandleLine("init x 7"))

	outcomes, err := h.Engine().Dist()
	require.NoError(t, err)
	assert.NotNil(t, outcomes)
}

func TestResetReplacesTheEngine(t *testing.T) {
	h := NewHandler(machine.DefaultConfig(), zerolog.Nop())
	require.NoError(t, h.HandleLine("x := reg"))
	before := h.Engine()

	h.Reset(machine.DefaultConfig(), zerolog.Nop())
	after := h.Engine()
	assert.NotSame(t, before, after)

	// The new engine has no `x` registered; referencing it fails.
	err := h.HandleLine("init x 1")
	assert.Error(t, err)
}
