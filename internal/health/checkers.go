package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/powerage/scramblecast/internal/store"
)

// StoreChecker reports ready only once the run store has been established and
// answers a ping.
func StoreChecker(gate *store.Gate) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			s, err := gate.Store()
			if err != nil {
				return err
			}
			return s.Ping(ctx)
		},
	}
}

// AudioDirChecker verifies the clip directory exists and is writable, so a
// scheduled run does not discover a broken volume mount mid-capture.
func AudioDirChecker(dir string) Checker {
	return Checker{
		Name: "audio_dir",
		Check: func(_ context.Context) error {
			probe := filepath.Join(dir, ".writecheck")
			if err := os.WriteFile(probe, nil, 0o600); err != nil {
				return fmt.Errorf("audio dir not writable: %w", err)
			}
			os.Remove(probe)
			return nil
		},
	}
}
