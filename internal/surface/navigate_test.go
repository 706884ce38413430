package surface

import (
	"testing"

	"github.com/rpggio/livesync/internal/live"
	"github.com/stretchr/testify/require"
)

func TestStepNext_RollsIntoNextItemWithSlides(t *testing.T) {
	snap := live.FromState(renderable("a", 0, 1))

	snap = StepNext(snap)
	require.Equal(t, "a", snap.ActiveItemID)
	require.Equal(t, 1, snap.ActiveSlideIndex)

	snap = StepNext(snap)
	require.Equal(t, "b", snap.ActiveItemID, "items without slides are skipped")
	require.Equal(t, 0, snap.ActiveSlideIndex)

	end := StepNext(snap)
	require.Equal(t, snap.ActiveItemID, end.ActiveItemID)
	require.Equal(t, snap.ActiveSlideIndex, end.ActiveSlideIndex)
}

func TestStepPrev_RollsIntoPreviousItemsLastSlide(t *testing.T) {
	snap := live.FromState(renderable("b", 0, 1))

	snap = StepPrev(snap)
	require.Equal(t, "a", snap.ActiveItemID)
	require.Equal(t, 1, snap.ActiveSlideIndex)

	snap = StepPrev(snap)
	require.Equal(t, 0, snap.ActiveSlideIndex)

	start := StepPrev(snap)
	require.Equal(t, "a", start.ActiveItemID)
	require.Equal(t, 0, start.ActiveSlideIndex)
}

func TestStep_UnresolvedActiveItem(t *testing.T) {
	snap := live.FromState(renderable("gone", 3, 1))
	require.Equal(t, "a", StepNext(snap).ActiveItemID)

	prev := StepPrev(snap)
	require.Equal(t, "b", prev.ActiveItemID)
	require.Equal(t, 0, prev.ActiveSlideIndex)

	empty := live.FromState(nil)
	require.Equal(t, empty, StepNext(empty))
}

func TestStepPrev_ClampsOutOfRangeSlide(t *testing.T) {
	snap := live.FromState(renderable("a", 9, 1))
	snap = StepPrev(snap)
	require.Equal(t, "a", snap.ActiveItemID)
	require.Equal(t, 1, snap.ActiveSlideIndex)
}

func TestToggleBlackout(t *testing.T) {
	snap := live.FromState(renderable("a", 0, 1))
	require.True(t, ToggleBlackout(snap).Blackout)
	require.False(t, ToggleBlackout(ToggleBlackout(snap)).Blackout)
}
