package storage

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// Watermarks is a file-backed map of counterparty id to the last timestamp the
// viewer is considered to have read. It persists across sessions so unread
// badges survive restarts even when the server's read receipts lag.
type Watermarks struct {
	path string

	mu    sync.Mutex
	marks map[types.ID]time.Time
}

// OpenWatermarks loads the watermark file, starting empty when it does not
// exist yet.
func OpenWatermarks(path string) (*Watermarks, error) {
	w := &Watermarks{
		path:  path,
		marks: make(map[types.ID]time.Time),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, err
	}

	var raw map[string]time.Time
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for id, ts := range raw {
		w.marks[types.ID(id)] = ts
	}
	return w, nil
}

// Get returns the watermark for a counterparty.
//
// ok is false when the counterparty has never been read.
func (w *Watermarks) Get(counterparty types.ID) (mark time.Time, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mark, ok = w.marks[counterparty]
	return mark, ok
}

// Set records the watermark for a counterparty and persists the file.
func (w *Watermarks) Set(counterparty types.ID, mark time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.marks[counterparty] = mark

	raw := make(map[string]time.Time, len(w.marks))
	for id, ts := range w.marks {
		raw[id.String()] = ts
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}
