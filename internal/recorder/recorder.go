// Package recorder captures fixed-length clips of the configured internet
// radio stream. A capture is two steps: a plain GET against the stream URL to
// refresh the listener session (persisting any session cookie the server
// hands out), then an external ffmpeg invocation bounded by the clip length.
//
// Capture failures are always fatal to a run — a failed capture leaves
// nothing to transcribe.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default request headers presented to the stream server. Some stream hosts
// refuse clients without a browser-looking User-Agent.
const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultAccept    = "audio/mpeg, audio/*;q=0.9, */*;q=0.5"
)

// Config configures a [Recorder].
type Config struct {
	// StreamURL is the radio stream endpoint.
	StreamURL string

	// Referer is sent on the session-refresh GET and the capture. Optional.
	Referer string

	// UserAgent overrides the default browser-like User-Agent. Optional.
	UserAgent string

	// AudioDir is the directory clips are written to. Created if missing.
	AudioDir string

	// CookiePath is the file the session cookie persists in between runs.
	CookiePath string

	// FFmpegPath is the capture binary. Default: "ffmpeg" from PATH.
	FFmpegPath string
}

// Recorder captures stream clips via an external ffmpeg process.
type Recorder struct {
	cfg    Config
	client *http.Client

	// command builds the capture process; swapped out in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates a Recorder and ensures the audio directory exists.
func New(cfg Config) (*Recorder, error) {
	if cfg.StreamURL == "" {
		return nil, errors.New("recorder: stream URL is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create audio dir: %w", err)
	}
	return &Recorder{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		command: exec.CommandContext,
	}, nil
}

// Record captures seconds of the stream and returns the path of the written
// clip. The file name embeds a timestamp so concurrent retention of old clips
// never collides.
func (r *Recorder) Record(ctx context.Context, seconds int) (string, error) {
	cookie := r.refreshSession(ctx)

	outPath := filepath.Join(r.cfg.AudioDir,
		fmt.Sprintf("clip-%s.mp3", time.Now().UTC().Format("20060102T150405Z")))

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-user_agent", r.cfg.UserAgent,
	}
	if hdr := r.headerBlock(cookie); hdr != "" {
		args = append(args, "-headers", hdr)
	}
	args = append(args,
		"-i", r.cfg.StreamURL,
		"-t", strconv.Itoa(seconds),
		"-acodec", "copy",
		"-y", outPath,
	)

	cmd := r.command(ctx, r.cfg.FFmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("recorder: capture process: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("recorder: capture produced no file: %w", err)
	}
	if info.Size() == 0 {
		return "", errors.New("recorder: capture produced an empty file")
	}
	slog.Debug("clip captured", "path", outPath, "bytes", info.Size())
	return outPath, nil
}

// refreshSession issues the session-refresh GET and returns the cookie to use
// for the capture. Refresh failures are tolerated — the capture itself is the
// authoritative attempt — so this only logs and falls back to the persisted
// cookie (or none).
func (r *Recorder) refreshSession(ctx context.Context) string {
	cookie := r.loadCookie()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.StreamURL, nil)
	if err != nil {
		slog.Warn("session refresh request build failed", "error", err)
		return cookie
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", defaultAccept)
	if r.cfg.Referer != "" {
		req.Header.Set("Referer", r.cfg.Referer)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("session refresh failed", "error", err)
		return cookie
	}
	// Stream bodies are endless; never read them here.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 0))
	resp.Body.Close()

	if fresh := sessionCookie(resp.Header.Values("Set-Cookie")); fresh != "" {
		cookie = fresh
		r.saveCookie(cookie)
		slog.Debug("session cookie refreshed")
	}
	return cookie
}

// headerBlock renders the CRLF-joined header block ffmpeg expects via its
// -headers flag.
func (r *Recorder) headerBlock(cookie string) string {
	var lines []string
	lines = append(lines, "Accept: "+defaultAccept)
	if r.cfg.Referer != "" {
		lines = append(lines, "Referer: "+r.cfg.Referer)
	}
	if cookie != "" {
		lines = append(lines, "Cookie: "+cookie)
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func (r *Recorder) loadCookie() string {
	if r.cfg.CookiePath == "" {
		return ""
	}
	b, err := os.ReadFile(r.cfg.CookiePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (r *Recorder) saveCookie(cookie string) {
	if r.cfg.CookiePath == "" {
		return
	}
	if err := os.WriteFile(r.cfg.CookiePath, []byte(cookie+"\n"), 0o600); err != nil {
		slog.Warn("cookie persist failed", "path", r.cfg.CookiePath, "error", err)
	}
}

// sessionCookie extracts the first name=value pair that looks like a session
// cookie from a Set-Cookie header list. Attributes (Path, Expires, ...) are
// dropped.
func sessionCookie(setCookies []string) string {
	for _, sc := range setCookies {
		pair, _, _ := strings.Cut(sc, ";")
		pair = strings.TrimSpace(pair)
		name, _, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(name), "sess") || strings.HasPrefix(name, "AIS") {
			return pair
		}
	}
	return ""
}
