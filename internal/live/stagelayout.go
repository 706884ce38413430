package live

import "math"

// StageTimerLayout is the free-floating stage timer widget geometry, in
// viewport pixels.
type StageTimerLayout struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	FontScale float64 `json:"fontScale"`
	Variant   string  `json:"variant,omitempty"`
	Locked    bool    `json:"locked"`
}

const (
	minTimerWidth  = 120
	minTimerHeight = 60
	minFontScale   = 0.5
	maxFontScale   = 4
)

// DefaultStageTimerLayout is used when a workspace has no saved layout.
func DefaultStageTimerLayout() StageTimerLayout {
	return StageTimerLayout{X: 24, Y: 24, Width: 320, Height: 140, FontScale: 1, Variant: "pill"}
}

// Clamp fits the layout inside a viewport so the widget can never render
// off-screen. It must be re-applied after every resize or value change.
func (l StageTimerLayout) Clamp(viewportWidth, viewportHeight float64) StageTimerLayout {
	vw := finiteOr(viewportWidth, 0)
	vh := finiteOr(viewportHeight, 0)

	out := l
	out.Width = clampFloat(finiteOr(l.Width, minTimerWidth), math.Min(minTimerWidth, vw), vw)
	out.Height = clampFloat(finiteOr(l.Height, minTimerHeight), math.Min(minTimerHeight, vh), vh)
	out.X = clampFloat(finiteOr(l.X, 0), 0, vw-out.Width)
	out.Y = clampFloat(finiteOr(l.Y, 0), 0, vh-out.Height)
	out.FontScale = clampFloat(finiteOr(l.FontScale, 1), minFontScale, maxFontScale)
	return out
}

// Map returns the layout as a settings value.
func (l StageTimerLayout) Map() map[string]any {
	return map[string]any{
		"x":         l.X,
		"y":         l.Y,
		"width":     l.Width,
		"height":    l.Height,
		"fontScale": l.FontScale,
		"variant":   l.Variant,
		"locked":    l.Locked,
	}
}

// StageTimerLayoutFrom reads a layout out of a settings value, falling back
// to the default for anything missing.
func StageTimerLayoutFrom(v any) StageTimerLayout {
	layout := DefaultStageTimerLayout()
	obj, ok := v.(map[string]any)
	if !ok {
		return layout
	}
	if f, ok := floatValue(obj["x"]); ok {
		layout.X = f
	}
	if f, ok := floatValue(obj["y"]); ok {
		layout.Y = f
	}
	if f, ok := floatValue(obj["width"]); ok {
		layout.Width = f
	}
	if f, ok := floatValue(obj["height"]); ok {
		layout.Height = f
	}
	if f, ok := floatValue(obj["fontScale"]); ok {
		layout.FontScale = f
	}
	if s := stringValue(obj["variant"]); s != "" {
		layout.Variant = s
	}
	layout.Locked = boolValue(obj["locked"])
	return layout
}

func floatValue(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
