package debuglog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
)

// Tailer follows the debug log file and hands each newly appended,
// fully reconstructed entry to a callback. It polls rather than using
// inotify so rotation and truncation by outside tools are handled the
// same way everywhere.
type Tailer struct {
	path     string
	format   string
	interval time.Duration
	callback func(core.LogEntry)
	logger   *log.Logger

	mu          sync.Mutex
	position    int64
	size        int64
	inode       uint64
	modTime     time.Time
	carry       []byte
	parser      *Parser
	quietCycles int
	rotations   int

	entriesEmitted atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTailer creates a tailer that polls path every interval. Only
// entries appended after Start are emitted.
func NewTailer(path, format string, interval time.Duration, callback func(core.LogEntry), logger *log.Logger) *Tailer {
	t := &Tailer{
		path:     path,
		format:   format,
		interval: interval,
		callback: callback,
		logger:   logger,
		position: -1,
		done:     make(chan struct{}),
	}
	t.parser = NewEmitter(func(entry core.LogEntry) {
		t.entriesEmitted.Add(1)
		callback(entry)
	})
	return t
}

// Start begins polling until the context is cancelled or Stop is
// called.
func (t *Tailer) Start(ctx context.Context) error {
	if err := t.seekToEnd(); err != nil {
		return fmt.Errorf("failed to position tailer: %w", err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case <-ticker.C:
				if err := t.poll(); err != nil {
					t.logger.Warn("msg", "Tail poll failed",
						"component", "debuglog",
						"path", t.path,
						"error", err)
				}
			}
		}
	}()

	t.logger.Info("msg", "Debug log tailer started",
		"component", "debuglog",
		"path", t.path,
		"poll_interval", t.interval)
	return nil
}

// Stop halts polling.
func (t *Tailer) Stop() {
	close(t.done)
	t.wg.Wait()
}

// GetStats returns tailer statistics.
func (t *Tailer) GetStats() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return map[string]any{
		"path":            t.path,
		"position":        t.position,
		"size":            t.size,
		"rotations":       t.rotations,
		"entries_emitted": t.entriesEmitted.Load(),
	}
}

// seekToEnd records the current end of file so only future appends are
// streamed. A missing file starts at position zero and is picked up
// when it appears.
func (t *Tailer) seekToEnd() error {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.mu.Lock()
			t.position = 0
			t.mu.Unlock()
			return nil
		}
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = info.Size()
	t.size = info.Size()
	t.modTime = info.ModTime()
	t.inode = inodeOf(info)
	return nil
}

func (t *Tailer) poll() error {
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	t.mu.Lock()
	startPos := t.position
	currentSize := info.Size()
	currentModTime := info.ModTime()
	currentInode := inodeOf(info)

	// Rotation and truncation heuristics, in order of confidence.
	rotated := false
	switch {
	case currentSize < t.size:
		rotated = true
	case t.position > currentSize:
		rotated = true
	case t.inode != 0 && currentInode != 0 && currentInode != t.inode && currentSize < t.position:
		rotated = true
	case currentModTime.Before(t.modTime) && currentSize <= t.size:
		rotated = true
	}

	if rotated {
		t.rotations++
		t.carry = nil
		startPos = 0
		t.logger.Info("msg", "Debug log rotation detected",
			"component", "debuglog",
			"path", t.path,
			"rotation", t.rotations)
	}

	t.position = startPos
	t.size = currentSize
	t.modTime = currentModTime
	t.inode = currentInode
	t.mu.Unlock()

	if currentSize <= startPos {
		t.settle()
		return nil
	}

	if _, err := file.Seek(startPos, io.SeekStart); err != nil {
		return err
	}

	chunk := make([]byte, currentSize-startPos)
	n, err := io.ReadFull(file, chunk)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	chunk = chunk[:n]

	t.mu.Lock()
	t.position = startPos + int64(n)
	t.quietCycles = 0
	data := append(t.carry, chunk...)

	// Feed only complete lines; a partial trailing line waits for the
	// next poll.
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(string(data[:idx]), "\r")
		data = data[idx+1:]
		t.feedLine(line)
	}
	t.carry = data
	t.mu.Unlock()

	return nil
}

func (t *Tailer) feedLine(line string) {
	if t.format == FormatJSONL {
		if entry, ok := decodeJSONLine([]byte(line)); ok {
			t.entriesEmitted.Add(1)
			t.callback(entry)
		}
		return
	}
	t.parser.Feed(line)
}

// settle flushes a pending text entry after two quiet polls. Without
// it the last entry of an idle log would sit unemitted waiting for a
// terminator that may never come.
func (t *Tailer) settle() {
	if t.format == FormatJSONL {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.parser.HasPending() {
		t.quietCycles = 0
		return
	}
	t.quietCycles++
	if t.quietCycles >= 2 {
		t.parser.Flush()
		t.quietCycles = 0
	}
}

func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
