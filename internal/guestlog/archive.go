package guestlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
)

// archiveName returns the archive filename for a prune run at now.
func archiveName(now time.Time) string {
	return "pruned-" + strconv.FormatInt(now.UnixNano(), 10) + ".jsonl.zst"
}

// writeArchive stores lines, newline-terminated, in a new zstd file under dir
// and returns its path. The file is synced before returning.
func writeArchive(dir string, now time.Time, lines []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(dir, archiveName(now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	if err := writeCompressed(f, lines); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return path, nil
}

func writeCompressed(w io.Writer, lines []string) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	for _, line := range lines {
		if _, err := io.WriteString(enc, line+"\n"); err != nil {
			_ = enc.Close()
			return fmt.Errorf("write archive: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// ReadArchive returns the records stored in a prune archive.
func ReadArchive(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var lines []string
	err = scanLines(dec, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
