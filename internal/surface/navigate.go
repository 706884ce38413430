package surface

import "github.com/rpggio/livesync/internal/live"

// StepNext advances one slide, rolling into the next item that has slides.
// At the end of the schedule the snapshot is returned unchanged. An
// unresolved active item starts at the first slide of the schedule.
func StepNext(snap live.Snapshot) live.Snapshot {
	pos := snap.IndexOf(snap.ActiveItemID)
	if pos < 0 {
		return jumpTo(snap, firstWithSlides(snap.Schedule, 0, 1), false)
	}
	item := snap.Schedule[pos]
	if snap.ActiveSlideIndex+1 < len(item.Slides) {
		snap.ActiveSlideIndex++
		return snap
	}
	return jumpTo(snap, firstWithSlides(snap.Schedule, pos+1, 1), false)
}

// StepPrev is the mirror of StepNext: it rolls back into the previous
// item's last slide.
func StepPrev(snap live.Snapshot) live.Snapshot {
	pos := snap.IndexOf(snap.ActiveItemID)
	if pos < 0 {
		return jumpTo(snap, firstWithSlides(snap.Schedule, len(snap.Schedule)-1, -1), true)
	}
	item := snap.Schedule[pos]
	if len(item.Slides) > 0 && snap.ActiveSlideIndex >= len(item.Slides) {
		snap.ActiveSlideIndex = len(item.Slides) - 1
		return snap
	}
	if snap.ActiveSlideIndex > 0 {
		snap.ActiveSlideIndex--
		return snap
	}
	return jumpTo(snap, firstWithSlides(snap.Schedule, pos-1, -1), true)
}

// ToggleBlackout flips the blackout flag.
func ToggleBlackout(snap live.Snapshot) live.Snapshot {
	snap.Blackout = !snap.Blackout
	return snap
}

func firstWithSlides(schedule []live.Item, from, dir int) int {
	for i := from; i >= 0 && i < len(schedule); i += dir {
		if len(schedule[i].Slides) > 0 {
			return i
		}
	}
	return -1
}

func jumpTo(snap live.Snapshot, pos int, last bool) live.Snapshot {
	if pos < 0 {
		return snap
	}
	item := snap.Schedule[pos]
	snap.ActiveItemID = item.ID
	snap.ActiveSlideIndex = 0
	if last {
		snap.ActiveSlideIndex = len(item.Slides) - 1
	}
	return snap
}
