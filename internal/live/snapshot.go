// Package live defines the rendering-relevant view of a session state
// document and the pure logic every surface runs on it: interpreting a raw
// state blob, reconciling candidate sources, and routing the result to an
// output.
package live

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// State document keys shared by the server store, the local cache and the
// surfaces.
const (
	KeySchedule          = "scheduleSnapshot"
	KeyLocalSchedule     = "schedule"
	KeyActiveItemID      = "activeItemId"
	KeyActiveSlideIndex  = "activeSlideIndex"
	KeyBlackout          = "blackout"
	KeyRoutingMode       = "routingMode"
	KeyLowerThirds       = "lowerThirdsEnabled"
	KeyTimerMode         = "timerMode"
	KeyTimerDurationSec  = "timerDurationSec"
	KeyTimerStartedAt    = "timerStartedAt"
	KeyTimerRunning      = "timerRunning"
	KeyTimerLabel        = "timerLabel"
	KeyUpdatedAt         = "updatedAt"
	KeyRemoteCommand     = "remoteCommand"
	KeyRemoteCommandAt   = "remoteCommandAt"
	KeyControllerEmail   = "controllerOwnerEmail"
	KeyControllerBeatAt  = "controllerHeartbeatAt"
	KeyWorkspaceSettings = "workspaceSettings"
)

// ItemTypeAnnouncement marks schedule items eligible for the lobby loop.
const ItemTypeAnnouncement = "ANNOUNCEMENT"

const (
	defaultRoutingMode    = RoutingProjector
	timerModeCountdown    = "COUNTDOWN"
	timerModeElapsed      = "ELAPSED"
	maxReasonableSlideIdx = 1 << 20
)

// RoutingMode selects what an output paints.
type RoutingMode string

const (
	RoutingProjector RoutingMode = "PROJECTOR"
	RoutingStream    RoutingMode = "STREAM"
	RoutingLobby     RoutingMode = "LOBBY"
)

// ParseRoutingMode normalizes a routing mode, defaulting to PROJECTOR.
func ParseRoutingMode(v string) RoutingMode {
	switch RoutingMode(strings.ToUpper(strings.TrimSpace(v))) {
	case RoutingStream:
		return RoutingStream
	case RoutingLobby:
		return RoutingLobby
	default:
		return defaultRoutingMode
	}
}

// Slide is one renderable page of a service item.
type Slide struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`
}

// Item is a service item (song, scripture, announcement...) in the schedule.
type Item struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Type   string  `json:"type,omitempty"`
	Slides []Slide `json:"slides,omitempty"`
}

// Timer carries the stage timer fields of a snapshot.
type Timer struct {
	Mode        string `json:"mode,omitempty"`
	DurationSec int64  `json:"durationSec,omitempty"`
	StartedAt   int64  `json:"startedAt,omitempty"`
	Running     bool   `json:"running,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Remaining returns the time left on a running or paused countdown, or the
// elapsed time for elapsed-mode timers. Countdowns never go below zero.
func (t Timer) Remaining(now time.Time) time.Duration {
	total := time.Duration(t.DurationSec) * time.Second
	var elapsed time.Duration
	if t.Running && t.StartedAt > 0 {
		elapsed = now.Sub(time.UnixMilli(t.StartedAt))
		if elapsed < 0 {
			elapsed = 0
		}
	}
	if strings.EqualFold(t.Mode, timerModeElapsed) {
		return elapsed
	}
	if elapsed >= total {
		return 0
	}
	return total - elapsed
}

// Snapshot is the rendering-relevant subset of a session state document.
type Snapshot struct {
	Schedule           []Item      `json:"scheduleSnapshot"`
	ActiveItemID       string      `json:"activeItemId,omitempty"`
	ActiveSlideIndex   int         `json:"activeSlideIndex"`
	Blackout           bool        `json:"blackout"`
	RoutingMode        RoutingMode `json:"routingMode"`
	LowerThirdsEnabled bool        `json:"lowerThirdsEnabled"`
	Timer              Timer       `json:"timer"`
	UpdatedAt          int64       `json:"updatedAt"`
	RemoteCommand      string      `json:"remoteCommand,omitempty"`
	RemoteCommandAt    int64       `json:"remoteCommandAt,omitempty"`
}

// FromState interprets a raw state document. Missing or malformed values
// fall back to zero values; a partial document reads as "nothing live".
func FromState(raw map[string]any) Snapshot {
	snap := Snapshot{RoutingMode: defaultRoutingMode}
	if raw == nil {
		return snap
	}

	schedule, ok := raw[KeySchedule]
	if !ok || schedule == nil {
		schedule = raw[KeyLocalSchedule]
	}
	snap.Schedule = parseSchedule(schedule)
	snap.ActiveItemID = stringValue(raw[KeyActiveItemID])
	snap.ActiveSlideIndex = clampIndex(intValue(raw[KeyActiveSlideIndex]))
	snap.Blackout = boolValue(raw[KeyBlackout])
	snap.RoutingMode = ParseRoutingMode(stringValue(raw[KeyRoutingMode]))
	snap.LowerThirdsEnabled = boolValue(raw[KeyLowerThirds])
	snap.Timer = Timer{
		Mode:        strings.ToUpper(stringValue(raw[KeyTimerMode])),
		DurationSec: intValue(raw[KeyTimerDurationSec]),
		StartedAt:   TimestampMillis(raw[KeyTimerStartedAt]),
		Running:     boolValue(raw[KeyTimerRunning]),
		Label:       stringValue(raw[KeyTimerLabel]),
	}
	if snap.Timer.Mode == "" {
		snap.Timer.Mode = timerModeCountdown
	}
	snap.UpdatedAt = TimestampMillis(raw[KeyUpdatedAt])
	snap.RemoteCommand = strings.ToUpper(stringValue(raw[KeyRemoteCommand]))
	snap.RemoteCommandAt = TimestampMillis(raw[KeyRemoteCommandAt])
	return snap
}

// State renders the snapshot back into a partial state document suitable
// for an upsert. Remote command fields are never included: only the server
// writes them.
func (s Snapshot) State() map[string]any {
	schedule := s.Schedule
	if schedule == nil {
		schedule = []Item{}
	}
	return map[string]any{
		KeySchedule:         schedule,
		KeyActiveItemID:     s.ActiveItemID,
		KeyActiveSlideIndex: s.ActiveSlideIndex,
		KeyBlackout:         s.Blackout,
		KeyRoutingMode:      string(s.RoutingMode),
		KeyLowerThirds:      s.LowerThirdsEnabled,
		KeyTimerMode:        s.Timer.Mode,
		KeyTimerDurationSec: s.Timer.DurationSec,
		KeyTimerStartedAt:   s.Timer.StartedAt,
		KeyTimerRunning:     s.Timer.Running,
		KeyTimerLabel:       s.Timer.Label,
		KeyUpdatedAt:        s.UpdatedAt,
	}
}

// Resolution is the active item and slide of a snapshot.
type Resolution struct {
	Item       *Item
	Slide      *Slide
	SlideIndex int
}

// Resolve looks up the active item and slide within the snapshot's own
// schedule. The item may resolve while the slide does not.
func (s Snapshot) Resolve() Resolution {
	res := Resolution{SlideIndex: s.ActiveSlideIndex}
	if s.ActiveItemID == "" {
		return res
	}
	item := s.FindItem(s.ActiveItemID)
	if item == nil {
		return res
	}
	res.Item = item
	if s.ActiveSlideIndex >= 0 && s.ActiveSlideIndex < len(item.Slides) {
		res.Slide = &item.Slides[s.ActiveSlideIndex]
	}
	return res
}

// Renderable reports whether the active item and slide both resolve.
func (s Snapshot) Renderable() bool {
	res := s.Resolve()
	return res.Item != nil && res.Slide != nil
}

// FindItem returns the schedule item with the given id.
func (s Snapshot) FindItem(id string) *Item {
	for i := range s.Schedule {
		if s.Schedule[i].ID == id {
			return &s.Schedule[i]
		}
	}
	return nil
}

// IndexOf returns the schedule position of an item id, or -1.
func (s Snapshot) IndexOf(id string) int {
	for i := range s.Schedule {
		if s.Schedule[i].ID == id {
			return i
		}
	}
	return -1
}

func parseSchedule(v any) []Item {
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]Item); ok {
			return append([]Item(nil), typed...)
		}
		return nil
	}
	items := make([]Item, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := Item{
			ID:    stringValue(obj["id"]),
			Title: stringValue(obj["title"]),
			Type:  strings.ToUpper(stringValue(obj["type"])),
		}
		if item.ID == "" {
			continue
		}
		if rawSlides, ok := obj["slides"].([]any); ok {
			for idx, rawSlide := range rawSlides {
				slideObj, ok := rawSlide.(map[string]any)
				if !ok {
					continue
				}
				slide := Slide{
					ID:      stringValue(slideObj["id"]),
					Label:   stringValue(slideObj["label"]),
					Content: stringValue(slideObj["content"]),
				}
				if slide.ID == "" {
					slide.ID = item.ID + ":" + strconv.Itoa(idx)
				}
				item.Slides = append(item.Slides, slide)
			}
		}
		items = append(items, item)
	}
	return items
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

func intValue(v any) int64 {
	switch typed := v.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0
		}
		return int64(typed)
	case int:
		return int64(typed)
	case int64:
		return typed
	case json.Number:
		n, err := typed.Int64()
		if err != nil {
			f, ferr := typed.Float64()
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func boolValue(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(typed))
		return b
	default:
		return false
	}
}

// clampIndex keeps negative indices negative so they never resolve to a
// slide.
func clampIndex(v int64) int {
	if v < 0 {
		return -1
	}
	if v > maxReasonableSlideIdx {
		return maxReasonableSlideIdx
	}
	return int(v)
}

// TimestampMillis reads a timestamp in any of the shapes surfaces write:
// epoch milliseconds, a numeric string, RFC3339 text, or a
// {seconds, nanoseconds} object. Unreadable values yield 0.
func TimestampMillis(v any) int64 {
	switch typed := v.(type) {
	case nil:
		return 0
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
		if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			return t.UnixMilli()
		}
		return 0
	case time.Time:
		return typed.UnixMilli()
	case map[string]any:
		seconds := intValue(typed["seconds"])
		if seconds == 0 {
			seconds = intValue(typed["_seconds"])
		}
		nanos := intValue(typed["nanoseconds"])
		if nanos == 0 {
			nanos = intValue(typed["_nanoseconds"])
		}
		return seconds*1000 + nanos/int64(time.Millisecond)
	default:
		return intValue(v)
	}
}
