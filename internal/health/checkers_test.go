package health

import (
	"context"
	"errors"
	"testing"

	"github.com/powerage/scramblecast/internal/store"
)

func TestStoreChecker_NotReady(t *testing.T) {
	gate := store.NewGate(func(context.Context) (store.Store, error) {
		return nil, errors.New("unreachable")
	})

	c := StoreChecker(gate)
	if err := c.Check(context.Background()); !errors.Is(err, store.ErrNotReady) {
		t.Errorf("Check err = %v, want ErrNotReady", err)
	}
}

func TestStoreChecker_Ready(t *testing.T) {
	c := StoreChecker(store.NewReadyGate(store.NewMemoryStore()))
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check err = %v, want nil", err)
	}
}

func TestAudioDirChecker(t *testing.T) {
	c := AudioDirChecker(t.TempDir())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("writable dir: Check err = %v, want nil", err)
	}

	c = AudioDirChecker("/proc/definitely/not/writable")
	if err := c.Check(context.Background()); err == nil {
		t.Error("unwritable dir: Check err = nil, want error")
	}
}
