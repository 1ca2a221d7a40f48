package config

import "testing"

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Stream: StreamConfig{URL: "https://radio.example/stream", ClipSeconds: 25},
		Schedule: ScheduleConfig{
			Cron:     "5 7 * * 1-5",
			Timezone: "Europe/Berlin",
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()

	if d := Diff(old, new); d.Any() {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("d = %+v, want LogLevelChanged with debug", d)
	}
	if d.ScheduleChanged || d.ClipSecondsChanged {
		t.Error("unrelated fields flagged as changed")
	}
}

func TestDiff_Schedule(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Schedule.Cron = "0 9 * * *"

	d := Diff(old, new)
	if !d.ScheduleChanged || d.NewSchedule.Cron != "0 9 * * *" {
		t.Errorf("d = %+v, want ScheduleChanged with the new cron", d)
	}
}

func TestDiff_ClipSeconds(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Stream.ClipSeconds = 45

	d := Diff(old, new)
	if !d.ClipSecondsChanged || d.NewClipSeconds != 45 {
		t.Errorf("d = %+v, want ClipSecondsChanged with 45", d)
	}
}
