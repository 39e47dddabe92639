package config

const (
	defaultDataDir             = "~/.local/share/sam"
	defaultLogDir              = "~/.local/share/sam/logs"
	defaultSettingsFile        = "~/.config/sam/settings.json"
	defaultDatabaseName        = "attendance.db"
	defaultReportName          = "SF2 Automated.xlsx"
	defaultLateMarkerName      = "late.png"
	defaultBackupDirName       = "backups"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultDevicePattern       = "/dev/video%d"
	defaultCameraWidth         = 640
	defaultCameraHeight        = 480
	defaultJoinTimeoutSeconds  = 2
	defaultFrameStride         = 2
	defaultRolloverInterval    = 3600
	defaultBackupRetentionDays = 14
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults. Paths derived
// from data_dir (database, report, marker image, backups) are filled in by
// normalization when left empty.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			SettingsFile: defaultSettingsFile,
			APIBind:      defaultAPIBind,
		},
		Camera: Camera{
			DevicePattern:      defaultDevicePattern,
			Width:              defaultCameraWidth,
			Height:             defaultCameraHeight,
			JoinTimeoutSeconds: defaultJoinTimeoutSeconds,
			FrameStride:        defaultFrameStride,
			Hotplug:            true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			LateArrivals:   true,
			NewDay:         true,
			Reports:        true,
			Errors:         true,
		},
		Workflow: Workflow{
			RolloverInterval:    defaultRolloverInterval,
			BackupRetentionDays: defaultBackupRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
