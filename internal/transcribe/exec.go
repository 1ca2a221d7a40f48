// Package transcribe converts captured audio clips to text. Two
// implementations are provided: [Exec] shells out to an external
// speech-to-text command (the default deployment uses the bundled
// faster-whisper script), and [Native] runs whisper.cpp in-process through
// its CGO bindings.
//
// Transcription failures are fatal to a run.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Exec invokes an external speech-to-text process with the audio file path as
// its sole trailing argument. Its stdout is the transcript; stderr is carried
// into the error on failure.
type Exec struct {
	command string
	args    []string

	// commandCtx builds the process; swapped out in tests.
	commandCtx func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExec creates an Exec transcriber running command with the given fixed
// leading arguments, e.g. NewExec("python3", "scripts/transcribe.py").
func NewExec(command string, args ...string) (*Exec, error) {
	if command == "" {
		return nil, errors.New("transcribe: command is required")
	}
	return &Exec{
		command:    command,
		args:       args,
		commandCtx: exec.CommandContext,
	}, nil
}

// Transcribe runs the external process on audioPath and returns its trimmed
// stdout.
func (e *Exec) Transcribe(ctx context.Context, audioPath string) (string, error) {
	cmd := e.commandCtx(ctx, e.command, append(append([]string{}, e.args...), audioPath)...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("transcribe: %s: %w (stderr: %s)",
			e.command, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
