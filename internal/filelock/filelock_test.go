package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beads.lock")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	guard, err := Acquire(ctx, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireContendedTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beads.lock")
	ctx1, cancel1 := context.WithTimeout(context.Background(), time.Second)
	defer cancel1()
	holder, err := Acquire(ctx1, path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer holder.Release()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := Acquire(ctx2, path); err != ErrLockTimeout {
		t.Errorf("contended Acquire = %v, want ErrLockTimeout", err)
	}
}

func TestReleaseNilGuard(t *testing.T) {
	var g *Guard
	if err := g.Release(); err != nil {
		t.Errorf("Release on nil guard = %v, want nil", err)
	}
}

func TestAcquireSequentialReentry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beads.lock")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		guard, err := Acquire(ctx, path)
		if err != nil {
			t.Fatalf("Acquire iteration %d: %v", i, err)
		}
		if err := guard.Release(); err != nil {
			t.Fatalf("Release iteration %d: %v", i, err)
		}
	}
}
