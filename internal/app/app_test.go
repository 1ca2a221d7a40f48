package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/powerage/scramblecast/internal/config"
	"github.com/powerage/scramblecast/internal/store"
)

type stubRecorder struct{}

func (stubRecorder) Record(context.Context, int) (string, error) {
	return "/tmp/clip.mp3", nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return "the keyword today is T-N-T", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Stream: config.StreamConfig{
			URL:         "https://radio.example/stream",
			ClipSeconds: 25,
			AudioDir:    t.TempDir(),
		},
		Transcriber: config.TranscriberConfig{Mode: config.TranscriberExec, Command: "true"},
		Store:       config.StoreConfig{Backend: config.StoreMemory},
		Schedule:    config.ScheduleConfig{},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithRecorder(stubRecorder{}),
		WithTranscriber(stubTranscriber{}),
	}, opts...)

	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Shutdown(ctx)
	})
	return a
}

func TestNew_MemoryBackendRunsPipeline(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	if !a.Gate().Ready() {
		t.Fatal("memory-backed gate is not ready")
	}

	ctx := context.Background()
	id, err := a.Service().EnqueueRun(ctx, "manual")
	if err != nil {
		t.Fatalf("EnqueueRun: %v", err)
	}

	st, err := a.Gate().Store()
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := st.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if rec.Status == store.StatusDone {
			if rec.DecodedSummary == nil || *rec.DecodedSummary != "TNT" {
				t.Errorf("DecodedSummary = %v, want TNT", rec.DecodedSummary)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s stuck at %q", id, rec.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_SQLiteBackendEstablishes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	a := newTestApp(t, cfg)

	ctx := context.Background()
	if err := a.Gate().Establish(ctx); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if !a.Gate().Ready() {
		t.Fatal("gate not ready after Establish")
	}

	st, err := a.Gate().Store()
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := st.CreateRun(ctx, "run-sqlite", 25); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rec, err := st.GetRun(ctx, "run-sqlite")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != store.StatusQueued {
		t.Errorf("Status = %q, want queued", rec.Status)
	}
}

func TestRun_CleanShutdown(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandleConfigChange_ClipSeconds(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	next := *cfg
	next.Stream.ClipSeconds = 45
	a.HandleConfigChange(cfg, &next)

	if got := a.Service().ClipSeconds(); got != 45 {
		t.Errorf("ClipSeconds = %d, want 45", got)
	}
}

func TestHandleConfigChange_LogLevel(t *testing.T) {
	cfg := testConfig(t)
	var level slog.LevelVar
	a := newTestApp(t, cfg, WithLogLevelVar(&level))

	next := *cfg
	next.Server.LogLevel = config.LogDebug
	a.HandleConfigChange(cfg, &next)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
}

func TestHandleConfigChange_BadScheduleKeepsOld(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Cron = "5 7 * * 1-5"
	a := newTestApp(t, cfg)
	before := a.scheduler

	next := *cfg
	next.Schedule.Cron = "not a cron"
	a.HandleConfigChange(cfg, &next)

	if a.scheduler != before {
		t.Error("invalid schedule replaced the running scheduler")
	}
}

func TestHandleConfigChange_NewSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Cron = "5 7 * * 1-5"
	a := newTestApp(t, cfg)
	before := a.scheduler

	next := *cfg
	next.Schedule.Cron = "0 9 * * *"
	a.HandleConfigChange(cfg, &next)

	if a.scheduler == before {
		t.Error("schedule change did not replace the scheduler")
	}
	a.scheduler.Stop()
}