package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	queueLockDirName   = ".queue.lock"
	queueLockOwnerFile = "owner.json"
)

// ErrLocked means another process is already draining a queue from the same
// state directory.
var ErrLocked = errors.New("queue is locked by another process")

type QueueLock struct {
	lockDir string
}

type LockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
	Jobs      int    `json:"jobs,omitempty"`
}

// AcquireQueueLock creates the lock directory inside stateDir. Directory
// creation is atomic, so at most one caller succeeds until Release.
func AcquireQueueLock(stateDir string, jobs int) (QueueLock, error) {
	target := strings.TrimSpace(stateDir)
	if target == "" {
		return QueueLock{}, fmt.Errorf("state directory is required")
	}
	if err := Mkdir(target); err != nil {
		return QueueLock{}, err
	}

	lockDir := filepath.Join(target, queueLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			if owner, readErr := ReadLockOwner(target); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return QueueLock{}, fmt.Errorf(
					"%w: %s (pid=%d created_at=%s host=%s)",
					ErrLocked, target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return QueueLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		return QueueLock{}, fmt.Errorf("acquire queue lock for %s: %w", target, err)
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
		Jobs:      jobs,
	}
	if err := WriteJSON(filepath.Join(lockDir, queueLockOwnerFile), owner); err != nil {
		_ = os.Remove(lockDir)
		return QueueLock{}, fmt.Errorf("write queue lock owner for %s: %w", target, err)
	}

	return QueueLock{lockDir: lockDir}, nil
}

// ReadLockOwner returns who holds the lock in stateDir.
func ReadLockOwner(stateDir string) (LockOwner, error) {
	var owner LockOwner
	path := filepath.Join(stateDir, queueLockDirName, queueLockOwnerFile)
	if err := ReadJSON(path, &owner); err != nil {
		return LockOwner{}, err
	}
	return owner, nil
}

func (l QueueLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, queueLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release queue lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
