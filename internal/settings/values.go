package settings

import (
	"regexp"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"
)

// Font sizes accepted by the font_size setting.
const (
	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Values is an immutable snapshot of every user setting. JSON tags are the
// keys used in the settings file and on the wire.
type Values struct {
	LateArrivalTime      string `json:"late_arrival_time"`
	AutoSaveInterval     int    `json:"auto_save_interval"`
	CameraQuality        int    `json:"camera_quality"`
	CameraFPS            int    `json:"camera_fps"`
	DuplicateScanTimeout int    `json:"duplicate_scan_timeout"`
	DateFormat           string `json:"date_format"`
	TimeFormat           string `json:"time_format"`
	AutoBackup           bool   `json:"auto_backup"`
	BackupInterval       int    `json:"backup_interval"`
	SoundNotifications   bool   `json:"sound_notifications"`
	VisualNotifications  bool   `json:"visual_notifications"`
	AutoUpdateSF2        bool   `json:"auto_update_sf2"`
	CameraIndex          int    `json:"camera_index"`
	WindowAlwaysOnTop    bool   `json:"window_always_on_top"`
	DarkMode             bool   `json:"dark_mode"`
	FontSize             string `json:"font_size"`
}

// Defaults returns the factory settings.
func Defaults() Values {
	return Values{
		LateArrivalTime:      "08:15",
		AutoSaveInterval:     300,
		CameraQuality:        70,
		CameraFPS:            30,
		DuplicateScanTimeout: 3,
		DateFormat:           "%m/%d/%y",
		TimeFormat:           "%H:%M:%S",
		AutoBackup:           true,
		BackupInterval:       24,
		SoundNotifications:   true,
		VisualNotifications:  true,
		AutoUpdateSF2:        true,
		CameraIndex:          0,
		WindowAlwaysOnTop:    false,
		DarkMode:             false,
		FontSize:             FontMedium,
	}
}

// FormatDate renders t with the configured date format.
func (v Values) FormatDate(t time.Time) string { return strftime.Format(v.DateFormat, t) }

// FormatTime renders t with the configured time format.
func (v Values) FormatTime(t time.Time) string { return strftime.Format(v.TimeFormat, t) }

// ParseDate parses a date string written with the configured date format.
func (v Values) ParseDate(value string) (time.Time, error) {
	return strftime.Parse(v.DateFormat, value)
}

// ParseTime parses a time-of-day string written with the configured time format.
func (v Values) ParseTime(value string) (time.Time, error) {
	return strftime.Parse(v.TimeFormat, value)
}

// LateCutoff returns late_arrival_time as minutes after midnight.
func (v Values) LateCutoff() int {
	minutes, ok := ParseClock(v.LateArrivalTime)
	if !ok {
		minutes, _ = ParseClock(Defaults().LateArrivalTime)
	}
	return minutes
}

// FrameDelay is the pause between capture iterations.
func (v Values) FrameDelay() time.Duration {
	fps := v.CameraFPS
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// DedupWindow is how long a payload is ignored after a scan.
func (v Values) DedupWindow() time.Duration {
	return time.Duration(v.DuplicateScanTimeout) * time.Second
}

// BackupEvery is the database snapshot period.
func (v Values) BackupEvery() time.Duration {
	return time.Duration(v.BackupInterval) * time.Hour
}

// ParseClock converts a strict HH:MM string into minutes after midnight.
func ParseClock(value string) (int, bool) {
	if !clockPattern.MatchString(value) {
		return 0, false
	}
	hours, _ := strconv.Atoi(value[:2])
	minutes, _ := strconv.Atoi(value[3:])
	return hours*60 + minutes, true
}
