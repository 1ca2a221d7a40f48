package recorder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeCapture returns a command builder that writes dummy audio bytes to the
// output path (the final ffmpeg argument) and exits 0.
func fakeCapture() func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, _ string, args ...string) *exec.Cmd {
		out := args[len(args)-1]
		return exec.CommandContext(ctx, "sh", "-c", "printf audio > "+out)
	}
}

func newTestRecorder(t *testing.T, streamURL string) *Recorder {
	t.Helper()
	dir := t.TempDir()
	r, err := New(Config{
		StreamURL:  streamURL,
		Referer:    "https://radio.example/player",
		AudioDir:   dir,
		CookiePath: filepath.Join(dir, "cookie.txt"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.command = fakeCapture()
	return r
}

func TestRecord_WritesClipAndPersistsCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Set-Cookie", "AISSessionId=abc123; Path=/; HttpOnly")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRecorder(t, srv.URL)

	path, err := r.Record(context.Background(), 25)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "clip-") || !strings.HasSuffix(path, ".mp3") {
		t.Errorf("path = %q, want clip-<timestamp>.mp3", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("clip file missing: %v", err)
	}

	cookie, err := os.ReadFile(r.cfg.CookiePath)
	if err != nil {
		t.Fatalf("cookie file: %v", err)
	}
	if got := strings.TrimSpace(string(cookie)); got != "AISSessionId=abc123" {
		t.Errorf("persisted cookie = %q, want AISSessionId=abc123", got)
	}
}

func TestRecord_ReusesPersistedCookie(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotCookie = req.Header.Get("Cookie")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRecorder(t, srv.URL)
	if err := os.WriteFile(r.cfg.CookiePath, []byte("AISSessionId=persisted\n"), 0o600); err != nil {
		t.Fatalf("seed cookie: %v", err)
	}

	if _, err := r.Record(context.Background(), 25); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if gotCookie != "AISSessionId=persisted" {
		t.Errorf("session refresh Cookie = %q, want the persisted value", gotCookie)
	}
}

func TestRecord_CaptureFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRecorder(t, srv.URL)
	r.command = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'Connection refused' >&2; exit 1")
	}

	_, err := r.Record(context.Background(), 25)
	if err == nil {
		t.Fatal("Record succeeded, want capture failure")
	}
	if !strings.Contains(err.Error(), "Connection refused") {
		t.Errorf("err = %v, want the capture stderr included", err)
	}
}

func TestRecord_ToleratesSessionRefreshFailure(t *testing.T) {
	// The refresh GET targets a closed port; the capture must still proceed.
	r := newTestRecorder(t, "http://127.0.0.1:1/stream")

	path, err := r.Record(context.Background(), 25)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("clip file missing: %v", err)
	}
}

func TestSessionCookie(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"ais session", []string{"AISSessionId=abc; Path=/"}, "AISSessionId=abc"},
		{"generic session", []string{"JSESSIONID=xyz; HttpOnly"}, "JSESSIONID=xyz"},
		{"non-session ignored", []string{"theme=dark; Path=/"}, ""},
		{"picks session among others", []string{"theme=dark", "session_id=42; Secure"}, "session_id=42"},
		{"empty", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sessionCookie(tc.in); got != tc.want {
				t.Errorf("sessionCookie(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestHeaderBlock(t *testing.T) {
	r := &Recorder{cfg: Config{Referer: "https://radio.example/player"}}

	hdr := r.headerBlock("AISSessionId=abc")
	for _, want := range []string{"Accept: ", "Referer: https://radio.example/player", "Cookie: AISSessionId=abc"} {
		if !strings.Contains(hdr, want) {
			t.Errorf("headerBlock missing %q in %q", want, hdr)
		}
	}
	if !strings.HasSuffix(hdr, "\r\n") {
		t.Error("headerBlock must end with CRLF")
	}
}
