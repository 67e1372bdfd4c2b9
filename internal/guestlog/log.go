// Package guestlog manages the guest account file: one compact JSON record
// per line, appended to by clients and periodically pruned by age.
//
// All operations on a Log are serialized by a single mutex held from the
// moment the file is opened until it is synced and closed, so a prune's
// truncate-and-rewrite is never observed half done.
package guestlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxAge is the retention window. Records whose ID timestamp is at least
// this old are removed by Prune.
const MaxAge = 25 * 24 * time.Hour

// maxAgeSecs is MaxAge in whole seconds, the unit ages are compared in.
const maxAgeSecs = int64(MaxAge / time.Second)

// ErrInvalidJSON is returned by Append when the payload is not a valid
// stream of JSON values.
var ErrInvalidJSON = errors.New("invalid json")

// Log serializes Count, Append and Prune against one Store.
type Log struct {
	mu           sync.Mutex
	store        *Store
	atomicAppend bool
	archiveDir   string
}

// Option configures a Log.
type Option func(*Log)

// WithAtomicAppend makes Append validate the whole payload before writing
// anything. Without it, values preceding a malformed one stay written.
func WithAtomicAppend(on bool) Option {
	return func(l *Log) { l.atomicAppend = on }
}

// WithArchiveDir makes Prune write removed records to a zstd-compressed
// file in dir before rewriting the guest file. Empty disables archiving.
func WithArchiveDir(dir string) Option {
	return func(l *Log) { l.archiveDir = dir }
}

// New creates a Log over store.
func New(store *Store, opts ...Option) *Log {
	l := &Log{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the path of the underlying file.
func (l *Log) Path() string {
	return l.store.Path()
}

// PruneResult reports what a Prune kept and removed.
type PruneResult struct {
	Kept    int
	Removed int
	Archive string
}

// Count returns the number of lines in the file. A final line without a
// trailing newline still counts.
func (l *Log) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return 0, err
	}
	defer l.close(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek guest file: %w", err)
	}

	var n int
	err = scanLines(f, func(string) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Append decodes r as a stream of concatenated JSON values and writes each
// one, compactly re-encoded, as its own line. It returns how many values were
// written. A malformed value yields an error wrapping ErrInvalidJSON; unless
// the Log was built WithAtomicAppend, the values before it remain in the file.
func (l *Log) Append(r io.Reader) (int, error) {
	var staged [][]byte
	if l.atomicAppend {
		dec := newValueDecoder(r)
		for {
			line, err := nextLine(dec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return 0, err
			}
			staged = append(staged, line)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return 0, err
	}
	defer l.close(f)

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return 0, fmt.Errorf("seek guest file: %w", err)
	}

	var n int
	if l.atomicAppend {
		if len(staged) > 0 {
			if _, err := f.Write(bytes.Join(staged, nil)); err != nil {
				return 0, fmt.Errorf("write guest file: %w", err)
			}
			n = len(staged)
		}
	} else {
		dec := newValueDecoder(r)
		for {
			line, err := nextLine(dec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return n, err
			}
			if _, err := f.Write(line); err != nil {
				return n, fmt.Errorf("write guest file: %w", err)
			}
			n++
		}
	}

	if err := f.Sync(); err != nil {
		return n, fmt.Errorf("sync guest file: %w", err)
	}
	return n, nil
}

// Prune removes every record whose ID timestamp is MaxAge or more before now.
// The whole file is scanned before anything is modified: a record that
// cannot be parsed aborts the prune and leaves the file untouched. Retained
// lines are rewritten verbatim and in their original order.
func (l *Log) Prune(now time.Time) (PruneResult, error) {
	nowSecs := now.Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return PruneResult{}, err
	}
	defer l.close(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return PruneResult{}, fmt.Errorf("seek guest file: %w", err)
	}

	var kept, removed []string
	lineNo := 0
	err = scanLines(f, func(line string) error {
		lineNo++
		ts, err := NewRecord(line).Timestamp()
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if nowSecs-ts < maxAgeSecs {
			kept = append(kept, line)
		} else {
			removed = append(removed, line)
		}
		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}

	res := PruneResult{Kept: len(kept), Removed: len(removed)}

	if l.archiveDir != "" && len(removed) > 0 {
		path, err := writeArchive(l.archiveDir, now, removed)
		if err != nil {
			return PruneResult{}, err
		}
		res.Archive = path
	}

	if err := f.Truncate(0); err != nil {
		return PruneResult{}, fmt.Errorf("truncate guest file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return PruneResult{}, fmt.Errorf("seek guest file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range kept {
		if _, err := w.WriteString(line); err != nil {
			return PruneResult{}, fmt.Errorf("rewrite guest file: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return PruneResult{}, fmt.Errorf("rewrite guest file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return PruneResult{}, fmt.Errorf("rewrite guest file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return PruneResult{}, fmt.Errorf("sync guest file: %w", err)
	}

	return res, nil
}

func (l *Log) open() (*os.File, error) {
	f, err := l.store.Open()
	if err != nil {
		return nil, err
	}
	if err := lock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (l *Log) close(f *os.File) {
	unlock(f)
	_ = f.Close()
}

// scanLines calls fn for every line in r with the line terminator removed.
// Unlike bufio.Scanner it has no maximum line length.
func scanLines(r io.Reader, fn func(line string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read guest file: %w", err)
		}
	}
}

func newValueDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// nextLine decodes the next JSON value from dec and returns it compactly
// encoded with a trailing newline. Object keys come out sorted and numbers
// keep their original text. A value containing invalid UTF-8 is rejected
// rather than stored with replacement characters. It returns io.EOF once the
// stream is exhausted.
func nextLine(dec *json.Decoder) ([]byte, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrInvalidJSON)
	}

	var v any
	if err := newValueDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}
