package backends

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/wayneeseguin/logpipe/pkg/features"
)

// DefaultBufferSize for file operations
const DefaultBufferSize = 32 * 1024 // 32 KB

// FileBackend appends entries to a file. Every write holds both the backend
// mutex and an advisory lock on "<path>.lock", so rotation (rename and
// reopen) is atomic with respect to writers in this and other processes:
// an entry arriving during rotation waits and lands in exactly one file.
type FileBackend struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	lock   *flock.Flock
	path   string
	size   int64
	closed bool

	// rotation, both optional
	sizePolicy features.SizePolicy
	timePolicy *features.TimePolicy
	rolloverAt time.Time
	now        func() time.Time
	onRotate   func(backup string)
}

// NewFileBackend creates a plain append-only file backend.
func NewFileBackend(path string) (*FileBackend, error) {
	return newFileBackend(path)
}

// NewRotatingFileBackend creates a file backend that rotates by size.
func NewRotatingFileBackend(path string, policy features.SizePolicy) (*FileBackend, error) {
	if policy.MaxBytes < 0 || policy.BackupCount < 0 {
		return nil, fmt.Errorf("invalid rotation policy: max_bytes=%d backup_count=%d", policy.MaxBytes, policy.BackupCount)
	}
	fb, err := newFileBackend(path)
	if err != nil {
		return nil, err
	}
	fb.sizePolicy = policy
	return fb, nil
}

// NewTimedRotatingFileBackend creates a file backend that rotates at wall
// clock boundaries. now may be nil, in which case time.Now is used.
func NewTimedRotatingFileBackend(path string, policy features.TimePolicy, now func() time.Time) (*FileBackend, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	fb, err := newFileBackend(path)
	if err != nil {
		return nil, err
	}
	fb.timePolicy = &policy
	fb.now = now

	// An existing file continues the period it was last written in.
	start := now()
	if info, err := fb.file.Stat(); err == nil && info.Size() > 0 {
		start = info.ModTime()
	}
	fb.rolloverAt = policy.NextRollover(start)
	return fb, nil
}

func newFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	// Clean the path to prevent directory traversal
	cleanPath := filepath.Clean(path)

	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	fb := &FileBackend{
		path: cleanPath,
		lock: flock.New(cleanPath + ".lock"),
		now:  time.Now,
	}
	if err := fb.open(); err != nil {
		return nil, err
	}
	return fb, nil
}

// open (re)opens the active file; callers hold fb.mu or own fb exclusively.
func (fb *FileBackend) open() error {
	file, err := os.OpenFile(fb.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G302 - log files need to be readable
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close() // Best effort close on error path
		return fmt.Errorf("stat file: %w", err)
	}
	fb.file = file
	fb.writer = bufio.NewWriterSize(file, DefaultBufferSize)
	fb.size = info.Size()
	return nil
}

// Write appends entry, rotating first when the active policy requires it.
func (fb *FileBackend) Write(entry []byte) (int, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return 0, fmt.Errorf("write %s: file backend closed", fb.path)
	}

	if err := fb.lock.Lock(); err != nil {
		return 0, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = fb.lock.Unlock() // Best effort unlock
	}()

	if fb.shouldRotateLocked(int64(len(entry))) {
		if err := fb.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := fb.writer.Write(entry)
	fb.size += int64(n)
	if err != nil {
		return n, err
	}
	return n, fb.writer.Flush()
}

func (fb *FileBackend) shouldRotateLocked(incoming int64) bool {
	if fb.timePolicy != nil {
		return !fb.now().Before(fb.rolloverAt)
	}
	return fb.sizePolicy.ShouldRotate(fb.size, incoming)
}

// Rotate forces an immediate rotation.
func (fb *FileBackend) Rotate() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return fmt.Errorf("rotate %s: file backend closed", fb.path)
	}
	if err := fb.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = fb.lock.Unlock()
	}()
	return fb.rotateLocked()
}

// SetRotateHook registers a callback invoked with the backup path after every rotation.
func (fb *FileBackend) SetRotateHook(fn func(backup string)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.onRotate = fn
}

func (fb *FileBackend) rotateLocked() error {
	if err := fb.writer.Flush(); err != nil {
		return fmt.Errorf("flushing log: %w", err)
	}
	if err := fb.file.Close(); err != nil {
		return fmt.Errorf("closing log: %w", err)
	}

	var backup string
	var err error
	switch {
	case fb.timePolicy != nil:
		backup, err = fb.rotateTimedLocked()
	case fb.sizePolicy.BackupCount > 0:
		backup = fb.path + ".1"
		err = features.ShiftBackups(fb.path, fb.sizePolicy.BackupCount)
	}

	// Reopen even when the rename failed so the backend stays usable.
	if openErr := fb.open(); openErr != nil {
		return openErr
	}
	if err != nil {
		return err
	}
	if backup != "" && fb.onRotate != nil {
		fb.onRotate(backup)
	}
	return nil
}

func (fb *FileBackend) rotateTimedLocked() (string, error) {
	p := fb.timePolicy
	now := fb.now()
	target := p.BackupName(fb.path, fb.rolloverAt)

	// Skip periods during which nothing was written.
	next := fb.rolloverAt
	for !now.Before(next) {
		next = p.NextRollover(next)
	}
	fb.rolloverAt = next

	backup := ""
	if fb.size > 0 {
		var err error
		if backup, err = features.RotateTo(fb.path, target); err != nil {
			return "", err
		}
	}
	if p.BackupCount > 0 {
		if _, err := features.PruneBackups(fb.path, p.BackupPattern(filepath.Base(fb.path)), p.BackupCount); err != nil {
			return backup, err
		}
	}
	return backup, nil
}

// Flush flushes buffered data to disk
func (fb *FileBackend) Flush() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.closed || fb.writer == nil {
		return nil
	}
	return fb.writer.Flush()
}

// Close closes the file backend
func (fb *FileBackend) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return nil
	}
	fb.closed = true

	var errs []error
	if err := fb.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := fb.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}
	if err := fb.lock.Close(); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Path returns the file path
func (fb *FileBackend) Path() string {
	return fb.path
}

// Size returns the current size of the active file
func (fb *FileBackend) Size() int64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.size
}
