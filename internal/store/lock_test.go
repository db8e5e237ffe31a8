package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireQueueLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "state")

	lock, err := AcquireQueueLock(stateDir, 3)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	owner, err := ReadLockOwner(stateDir)
	if err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner.PID != os.Getpid() || owner.Jobs != 3 {
		t.Fatalf("unexpected lock owner: %+v", owner)
	}

	if _, err := AcquireQueueLock(stateDir, 1); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on second acquire, got %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireQueueLock(stateDir, 1)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireQueueLock_RequiresStateDir(t *testing.T) {
	if _, err := AcquireQueueLock("  ", 0); err == nil {
		t.Fatalf("expected error for empty state dir")
	}
}

func TestWriteJSONReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	if err := WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteJSON(path, map[string]int{"a": 2}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["a"] != 2 {
		t.Fatalf("unexpected content: %v", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
