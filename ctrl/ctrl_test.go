package ctrl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/expr"
)

func recordingAction(log *[]string, name string) Action {
	return Action{
		Name: name,
		Do:   func() error { *log = append(*log, name+":do"); return nil },
		Undo: func() error { *log = append(*log, name+":undo"); return nil },
	}
}

func TestPerformRunsImmediatelyAtTopLevel(t *testing.T) {
	s := New()
	var log []string
	require.NoError(t, s.Perform(recordingAction(&log, "a")))
	assert.Equal(t, []string{"a:do"}, log)
}

func TestPerformQueuesInsideAFrame(t *testing.T) {
	s := New()
	var log []string
	s.PushFrame()
	require.NoError(t, s.Perform(recordingAction(&log, "a")))
	assert.Empty(t, log, "queued action must not run until the frame closes")
	actions := s.PopFrame()
	require.Len(t, actions, 1)
}

func TestInvScopeReplaysReversedAndInverted(t *testing.T) {
	s := New()
	var log []string
	sc := s.BeginInv()
	require.NoError(t, s.Perform(recordingAction(&log, "a")))
	require.NoError(t, s.Perform(recordingAction(&log, "b")))
	require.NoError(t, sc.End())
	assert.Equal(t, []string{"b:undo", "a:undo"}, log)
}

func TestDoubleInverseIsIdentityOrder(t *testing.T) {
	s := New()
	var log []string
	outer := s.BeginInv()
	inner := s.BeginInv()
	require.NoError(t, s.Perform(recordingAction(&log, "a")))
	require.NoError(t, inner.End())
	require.NoError(t, outer.End())
	assert.Equal(t, []string{"a:do"}, log)
}

func TestBeginIfPushesAndPopsControl(t *testing.T) {
	s := New()
	guard := expr.Lit(1)
	sc := s.BeginIf(guard)
	assert.Len(t, s.ActiveControls(), 1)
	require.NoError(t, sc.End())
	assert.Empty(t, s.ActiveControls())
}

func TestBeginIfNestedInsideInvIsQueuedNotAppliedImmediately(t *testing.T) {
	s := New()
	outer := s.BeginInv()
	inner := s.BeginIf(expr.Lit(1))
	// Queued inside outer's frame: control list must not have changed yet.
	assert.Empty(t, s.ActiveControls())
	require.NoError(t, inner.End())
	assert.Empty(t, s.ActiveControls())
	require.NoError(t, outer.End())
	assert.Empty(t, s.ActiveControls())
}

func TestControlOverlapDetectsFreeKey(t *testing.T) {
	s := New()
	s.PushControl(expr.KeyRef(5))
	assert.True(t, s.ControlOverlap(5))
	assert.False(t, s.ControlOverlap(6))
}

func TestTopLevelReflectsControlsAndFrames(t *testing.T) {
	s := New()
	assert.True(t, s.TopLevel())
	s.PushControl(expr.Lit(1))
	assert.False(t, s.TopLevel())
	s.PopControl()
	assert.True(t, s.TopLevel())
}
