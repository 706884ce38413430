package live

import "strings"

// RenderTarget is what a single output should paint.
type RenderTarget struct {
	Item        *Item       `json:"item,omitempty"`
	Slide       *Slide      `json:"slide,omitempty"`
	SlideIndex  int         `json:"slideIndex"`
	Blackout    bool        `json:"blackout"`
	RoutingMode RoutingMode `json:"routingMode"`
	// Substituted is set when the lobby override replaced the active item.
	Substituted    bool `json:"substituted"`
	HideBackground bool `json:"hideBackground"`
	LowerThirds    bool `json:"lowerThirds"`
}

// Empty reports whether there is no slide to paint.
func (t RenderTarget) Empty() bool {
	return t.Item == nil || t.Slide == nil
}

// ResolveRoute maps a reconciled snapshot to the output's render target.
// LOBBY substitutes the first announcement item and its first slide,
// falling back to the active item and slide. STREAM hides the background
// and forces lower thirds on.
func ResolveRoute(snap Snapshot) RenderTarget {
	active := snap.Resolve()
	target := RenderTarget{
		Item:        active.Item,
		Slide:       active.Slide,
		SlideIndex:  active.SlideIndex,
		Blackout:    snap.Blackout,
		RoutingMode: snap.RoutingMode,
		LowerThirds: snap.LowerThirdsEnabled,
	}
	if target.RoutingMode == "" {
		target.RoutingMode = defaultRoutingMode
	}

	switch target.RoutingMode {
	case RoutingLobby:
		lobby := firstAnnouncement(snap.Schedule)
		if lobby == nil {
			break
		}
		target.Item = lobby
		target.Substituted = active.Item == nil || active.Item.ID != lobby.ID
		if len(lobby.Slides) > 0 {
			target.Slide = &lobby.Slides[0]
			target.SlideIndex = 0
		}
	case RoutingStream:
		target.HideBackground = true
		target.LowerThirds = true
	}
	return target
}

func firstAnnouncement(schedule []Item) *Item {
	for i := range schedule {
		if strings.EqualFold(schedule[i].Type, ItemTypeAnnouncement) {
			return &schedule[i]
		}
	}
	return nil
}
