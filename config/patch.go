package config

import (
	"encoding/json"
	"fmt"
)

// Patch is a lenient partial update of Settings as sent by the control panel.
// Fields with the wrong JSON type are ignored rather than rejected.
type Patch struct {
	Cards  json.RawMessage `json:"cards"`
	Twitch json.RawMessage `json:"twitch"`
	Stock  json.RawMessage `json:"stock"`
	Theme  json.RawMessage `json:"theme"`
}

// ModulePatch carries the raw values of one module section.
type ModulePatch struct {
	Enabled    json.RawMessage `json:"enabled"`
	ChannelID  json.RawMessage `json:"channelId"`
	Channels   json.RawMessage `json:"channels"`
	Timeframes json.RawMessage `json:"timeframes"`
}

// ParsePatch decodes a request body. Only a body that is not a JSON object fails.
func ParsePatch(body []byte) (Patch, error) {
	var p Patch
	if len(body) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Patch{}, fmt.Errorf("decode settings patch: %w", err)
	}
	return p, nil
}

// Apply mutates s with every well-typed field of p and reports whether anything changed.
func (p Patch) Apply(s *Settings) bool {
	changed := false
	if mp, ok := modulePatch(p.Cards); ok {
		changed = mp.apply(&s.Cards) || changed
	}
	if mp, ok := modulePatch(p.Twitch); ok {
		changed = mp.apply(&s.Twitch.ModuleSettings) || changed
	}
	if mp, ok := modulePatch(p.Stock); ok {
		changed = mp.apply(&s.Stock.ModuleSettings) || changed
		if list, ok := stringList(mp.Timeframes); ok {
			s.Stock.Timeframes = list
			changed = true
		}
	}
	var theme string
	if len(p.Theme) > 0 && json.Unmarshal(p.Theme, &theme) == nil && Theme(theme).Valid() {
		s.Theme = Theme(theme)
		changed = true
	}
	return changed
}

// modulePatch decodes one module section. Anything but a JSON object is skipped.
func modulePatch(raw json.RawMessage) (*ModulePatch, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var mp *ModulePatch
	if err := json.Unmarshal(raw, &mp); err != nil || mp == nil {
		return nil, false
	}
	return mp, true
}

func (mp *ModulePatch) apply(m *ModuleSettings) bool {
	changed := false
	var enabled bool
	if len(mp.Enabled) > 0 && json.Unmarshal(mp.Enabled, &enabled) == nil {
		m.Enabled = enabled
		changed = true
	}
	if len(mp.ChannelID) > 0 {
		// Present but falsy (null, "", false, 0) clears the legacy target.
		if id, ok := truthyString(mp.ChannelID); ok {
			m.ChannelID = id
			changed = true
		}
	}
	if list, ok := stringList(mp.Channels); ok {
		m.Channels = list
		changed = true
	}
	return changed
}

// stringList decodes a JSON array keeping only its string elements.
func stringList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// truthyString maps a scalar channelId to its stored form. Objects and arrays
// are not a valid target and report ok=false.
func truthyString(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case float64:
		if t == 0 {
			return "", true
		}
		return string(raw), true
	case bool:
		if t {
			return "true", true
		}
		return "", true
	}
	return "", false
}
