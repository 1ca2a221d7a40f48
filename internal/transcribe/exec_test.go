package transcribe

import (
	"context"
	"strings"
	"testing"
)

func TestExec_ReturnsTrimmedStdout(t *testing.T) {
	e, err := NewExec("sh", "-c", `printf '  hello from the radio \n'; true`)
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	// sh -c ignores the trailing audio-path argument.
	got, err := e.Transcribe(context.Background(), "/tmp/clip.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from the radio" {
		t.Errorf("transcript = %q, want trimmed stdout", got)
	}
}

func TestExec_PassesAudioPathAsFinalArgument(t *testing.T) {
	e, err := NewExec("sh", "-c", `printf '%s' "$1"`, "argv0")
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	got, err := e.Transcribe(context.Background(), "/audio/clip-x.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "/audio/clip-x.mp3" {
		t.Errorf("transcript = %q, want the audio path echoed back", got)
	}
}

func TestExec_NonZeroExitCarriesStderr(t *testing.T) {
	e, err := NewExec("sh", "-c", `echo 'model file not found' >&2; exit 2`)
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	_, err = e.Transcribe(context.Background(), "/tmp/clip.mp3")
	if err == nil {
		t.Fatal("Transcribe succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "model file not found") {
		t.Errorf("err = %v, want stderr included", err)
	}
}

func TestNewExec_RequiresCommand(t *testing.T) {
	if _, err := NewExec(""); err == nil {
		t.Error("NewExec(\"\") succeeded, want error")
	}
}
