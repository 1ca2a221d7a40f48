// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Native runs whisper.cpp in-process, avoiding the per-run interpreter
// startup cost of the exec path. Captured clips are first converted to the
// 16 kHz mono WAV layout whisper expects via a short ffmpeg invocation.
type Native struct {
	model      whisperlib.Model
	language   string
	ffmpegPath string

	commandCtx func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription.
// Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeFFmpeg sets the ffmpeg binary used for the WAV conversion step.
// Defaults to "ffmpeg" from PATH.
func WithNativeFFmpeg(path string) NativeOption {
	return func(n *Native) { n.ffmpegPath = path }
}

// NewNative creates a Native transcriber that loads the whisper.cpp model
// from the given file path. The model is loaded once and reused across runs.
// The caller must call Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("transcribe: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:      model,
		language:   "en",
		ffmpegPath: "ffmpeg",
		commandCtx: exec.CommandContext,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe converts audioPath to 16 kHz mono WAV, runs whisper.cpp
// inference over it, and returns the concatenated segment text.
func (n *Native) Transcribe(ctx context.Context, audioPath string) (string, error) {
	wavPath, cleanup, err := n.toWAV(ctx, audioPath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	samples, err := readWAVSamples(wavPath)
	if err != nil {
		return "", err
	}

	// Each whisper context is single-use and not thread-safe; the shared
	// model is.
	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper language not applied", "language", n.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("transcribe: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("transcribe: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// toWAV converts the clip to the PCM layout whisper.cpp expects. The
// temporary WAV lives next to the source clip and is removed by cleanup.
func (n *Native) toWAV(ctx context.Context, audioPath string) (string, func(), error) {
	wavPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".wav"

	cmd := n.commandCtx(ctx, n.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", audioPath,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		"-y", wavPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", nil, fmt.Errorf("transcribe: wav conversion: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}
	return wavPath, func() { os.Remove(wavPath) }, nil
}
