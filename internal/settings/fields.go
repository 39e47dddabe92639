package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ncruces/go-strftime"
)

type field struct {
	key    string
	coerce func(any) (any, error)
	get    func(*Values) any
	set    func(*Values, any)
}

var fields = []field{
	{"late_arrival_time", clockValue,
		func(v *Values) any { return v.LateArrivalTime }, func(v *Values, x any) { v.LateArrivalTime = x.(string) }},
	{"auto_save_interval", intRange(60, 3600),
		func(v *Values) any { return v.AutoSaveInterval }, func(v *Values, x any) { v.AutoSaveInterval = x.(int) }},
	{"camera_quality", intRange(1, 100),
		func(v *Values) any { return v.CameraQuality }, func(v *Values, x any) { v.CameraQuality = x.(int) }},
	{"camera_fps", intRange(1, 60),
		func(v *Values) any { return v.CameraFPS }, func(v *Values, x any) { v.CameraFPS = x.(int) }},
	{"duplicate_scan_timeout", intRange(1, 30),
		func(v *Values) any { return v.DuplicateScanTimeout }, func(v *Values, x any) { v.DuplicateScanTimeout = x.(int) }},
	{"date_format", strftimeValue,
		func(v *Values) any { return v.DateFormat }, func(v *Values, x any) { v.DateFormat = x.(string) }},
	{"time_format", strftimeValue,
		func(v *Values) any { return v.TimeFormat }, func(v *Values, x any) { v.TimeFormat = x.(string) }},
	{"auto_backup", boolValue,
		func(v *Values) any { return v.AutoBackup }, func(v *Values, x any) { v.AutoBackup = x.(bool) }},
	{"backup_interval", intRange(1, 168),
		func(v *Values) any { return v.BackupInterval }, func(v *Values, x any) { v.BackupInterval = x.(int) }},
	{"sound_notifications", boolValue,
		func(v *Values) any { return v.SoundNotifications }, func(v *Values, x any) { v.SoundNotifications = x.(bool) }},
	{"visual_notifications", boolValue,
		func(v *Values) any { return v.VisualNotifications }, func(v *Values, x any) { v.VisualNotifications = x.(bool) }},
	{"auto_update_sf2", boolValue,
		func(v *Values) any { return v.AutoUpdateSF2 }, func(v *Values, x any) { v.AutoUpdateSF2 = x.(bool) }},
	{"camera_index", intRange(0, 10),
		func(v *Values) any { return v.CameraIndex }, func(v *Values, x any) { v.CameraIndex = x.(int) }},
	{"window_always_on_top", boolValue,
		func(v *Values) any { return v.WindowAlwaysOnTop }, func(v *Values, x any) { v.WindowAlwaysOnTop = x.(bool) }},
	{"dark_mode", boolValue,
		func(v *Values) any { return v.DarkMode }, func(v *Values, x any) { v.DarkMode = x.(bool) }},
	{"font_size", enumValue(FontSmall, FontMedium, FontLarge),
		func(v *Values) any { return v.FontSize }, func(v *Values, x any) { v.FontSize = x.(string) }},
}

var fieldIndex = func() map[string]*field {
	index := make(map[string]*field, len(fields))
	for i := range fields {
		index[fields[i].key] = &fields[i]
	}
	return index
}()

// Keys lists every recognized setting in file order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// IsKnown reports whether key is a recognized setting.
func IsKnown(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}

// Lookup returns the value of key in v.
func (v Values) Lookup(key string) (any, bool) {
	f, ok := fieldIndex[key]
	if !ok {
		return nil, false
	}
	return f.get(&v), true
}

// Map returns v keyed by setting name.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.key] = f.get(&v)
	}
	return out
}

func intRange(lo, hi int) func(any) (any, error) {
	return func(raw any) (any, error) {
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		return max(lo, min(hi, n)), nil
	}
}

func toInt(raw any) (int, error) {
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, errors.New("not a finite number")
		}
		// Saturate before converting; out-of-range conversions are undefined.
		switch {
		case value >= math.MaxInt:
			return math.MaxInt, nil
		case value <= math.MinInt:
			return math.MinInt, nil
		}
		return int(value), nil
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n), nil
		}
		f, err := value.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", value.String())
		}
		return toInt(f)
	case string:
		trimmed := strings.TrimSpace(value)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", value)
		}
		return toInt(f)
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
}

func boolValue(raw any) (any, error) {
	switch value := raw.(type) {
	case bool:
		return value, nil
	case float64:
		return value != 0, nil
	case int:
		return value != 0, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", value)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("expected a boolean, got %T", raw)
	}
}

func clockValue(raw any) (any, error) {
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected HH:MM, got %T", raw)
	}
	value = strings.TrimSpace(value)
	if _, ok := ParseClock(value); !ok {
		return nil, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return value, nil
}

func strftimeValue(raw any) (any, error) {
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected a format string, got %T", raw)
	}
	if !strings.Contains(value, "%") {
		return nil, fmt.Errorf("format %q has no directives", value)
	}
	if _, err := strftime.Layout(value); err != nil {
		return nil, fmt.Errorf("format %q: %v", value, err)
	}
	return value, nil
}

func enumValue(allowed ...string) func(any) (any, error) {
	return func(raw any) (any, error) {
		value, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected one of %s, got %T", strings.Join(allowed, "/"), raw)
		}
		value = strings.ToLower(strings.TrimSpace(value))
		for _, candidate := range allowed {
			if value == candidate {
				return value, nil
			}
		}
		return nil, fmt.Errorf("expected one of %s, got %q", strings.Join(allowed, "/"), value)
	}
}
