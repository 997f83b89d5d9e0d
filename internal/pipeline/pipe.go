// Package pipeline implements the named-pipe byte sink/source that carries
// the line codec's serialized PriceSamples between Stage A and Stage B,
// and the Pipeline Host that wires each stage's queues to it.
package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"syscall"
)

// EnsureFIFO creates a filesystem FIFO at path with mode 0666 if one does
// not already exist. It is a no-op if path already exists as a FIFO.
func EnsureFIFO(path string) error {
	if fi, err := os.Stat(path); err == nil {
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("pipeline: %s exists and is not a named pipe", path)
		}
		return nil
	}
	if err := syscall.Mkfifo(path, 0666); err != nil {
		return fmt.Errorf("pipeline: mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenWriter creates the FIFO if absent and opens it write-only, blocking
// until a reader attaches, matching a standard FIFO's open(2) semantics.
func OpenWriter(path string) (*os.File, error) {
	if err := EnsureFIFO(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY, os.ModeNamedPipe)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open %s for write: %w", path, err)
	}
	return f, nil
}

// OpenReader opens the FIFO at path read-only. The FIFO must already
// exist; Stage B does not create it.
func OpenReader(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, os.ModeNamedPipe)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open %s for read: %w", path, err)
	}
	return f, nil
}

// LineReader wraps a bufio.Scanner over r, exposed as a simple method so
// callers (the Stage B input loop) don't need to hold a *bufio.Scanner
// directly.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader wraps r for line-oriented reads.
func NewLineReader(r *os.File) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(r)}
}

// ReadLine returns the next line (without its trailing newline) and true,
// or ("", false) at EOF or on a scan error.
func (l *LineReader) ReadLine() (string, bool) {
	if !l.scanner.Scan() {
		return "", false
	}
	return l.scanner.Text(), true
}
