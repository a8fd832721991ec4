package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Saving after every user would mean one write per decision; batching
// trades a small reprocessing window for less I/O.
const checkpointInterval = 5

// Checkpoint is the persisted progress of one reconciliation session: the
// source principal names already handled plus the four cumulative
// counters. It is created lazily on first save and discarded once a
// session completes with zero errors.
type Checkpoint struct {
	Processed           []string `json:"processed"`
	MergedToDestination int      `json:"mergedToDestination"`
	MergedToSource      int      `json:"mergedToSource"`
	Skipped             int      `json:"skipped"`
	Errors              int      `json:"errors"`

	index map[string]struct{}
}

func newCheckpoint() *Checkpoint {
	return &Checkpoint{index: make(map[string]struct{})}
}

// loadCheckpoint reads a previously saved checkpoint. A missing file is
// not an error: it means the session starts clean.
func loadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	cp := newCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	for _, upn := range cp.Processed {
		cp.index[upn] = struct{}{}
	}
	return cp, nil
}

func (cp *Checkpoint) save(path string) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return nil
}

// has reports whether upn was already processed by this or an earlier
// session.
func (cp *Checkpoint) has(upn string) bool {
	_, ok := cp.index[upn]
	return ok
}

// add records upn as processed. Adding is idempotent so a replayed input
// set cannot duplicate entries.
func (cp *Checkpoint) add(upn string) {
	if cp.has(upn) {
		return
	}
	cp.index[upn] = struct{}{}
	cp.Processed = append(cp.Processed, upn)
}

// clear removes the checkpoint file after a clean completion so the next
// invocation starts fresh.
func clearCheckpoint(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
