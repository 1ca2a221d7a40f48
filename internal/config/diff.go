package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (store backend, listen address, transcriber mode) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ScheduleChanged bool
	NewSchedule     ScheduleConfig

	ClipSecondsChanged bool
	NewClipSeconds     int
}

// Any reports whether the diff carries at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ScheduleChanged || d.ClipSecondsChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Schedule != new.Schedule {
		d.ScheduleChanged = true
		d.NewSchedule = new.Schedule
	}
	if old.Stream.ClipSeconds != new.Stream.ClipSeconds {
		d.ClipSecondsChanged = true
		d.NewClipSeconds = new.Stream.ClipSeconds
	}
	return d
}
