package node

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const blockLogFileName = "blockchain.dta"

// BlockLog is the append-only file of accepted raw blocks, one per line.
type BlockLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func BlockLogPath(dataDir string) string {
	return filepath.Join(dataDir, blockLogFileName)
}

// OpenBlockLog opens or creates the log. A torn final record left by a crash is
// truncated away.
func OpenBlockLog(path string) (*BlockLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	if err := truncateTornTail(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600) // #nosec G304 -- path is derived from the operator's data dir.
	if err != nil {
		return nil, fmt.Errorf("open block log: %w", err)
	}
	return &BlockLog{path: path, f: f}, nil
}

func truncateTornTail(path string) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is derived from the operator's data dir.
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 || raw[len(raw)-1] == '\n' {
		return nil
	}
	keep := bytes.LastIndexByte(raw, '\n') + 1
	return os.Truncate(path, int64(keep))
}

func (bl *BlockLog) Path() string { return bl.path }

// Append writes one raw block and syncs it to disk.
func (bl *BlockLog) Append(raw string) error {
	if bl == nil {
		return errors.New("nil block log")
	}
	if raw == "" || strings.ContainsAny(raw, "\r\n") {
		return errors.New("block log: record must be a single non-empty line")
	}
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.f == nil {
		return errors.New("block log closed")
	}
	if _, err := bl.f.WriteString(raw + "\n"); err != nil {
		return fmt.Errorf("append block: %w", err)
	}
	if err := bl.f.Sync(); err != nil {
		return fmt.Errorf("sync block log: %w", err)
	}
	return nil
}

// Replay calls fn for every complete record in file order. Blank lines are skipped.
func (bl *BlockLog) Replay(ctx context.Context, fn func(line int, raw string) error) error {
	if bl == nil {
		return errors.New("nil block log")
	}
	f, err := os.Open(bl.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// text without a newline is a torn record
			return nil
		}
		if err != nil {
			return err
		}
		line++
		text = strings.TrimRight(text, "\r\n")
		if text == "" {
			continue
		}
		if err := fn(line, text); err != nil {
			return err
		}
	}
}

func (bl *BlockLog) Close() error {
	if bl == nil {
		return nil
	}
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.f == nil {
		return nil
	}
	err := bl.f.Close()
	bl.f = nil
	return err
}
