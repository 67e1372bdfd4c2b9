package guestlog

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Store owns the path of the guest account file.
type Store struct {
	path string
}

// NewStore creates a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Open opens the file for reading and appending, creating it if absent.
// A fresh handle is returned on every call; callers seek before reading.
func (s *Store) Open() (*os.File, error) {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open guest file: %w", err)
	}
	return f, nil
}

// lock takes an advisory exclusive flock on f for tools outside this process.
func lock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock guest file: %w", err)
	}
	return nil
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
