package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/pkg/logger"
)

// Sentinel errors raised by the position store. Callers handle these
// explicitly; they are never swallowed inside the store.
var (
	ErrDuplicatePosition = errors.New("position already open for ticker")
	ErrPositionNotFound  = errors.New("no open position for ticker")
)

// PositionsRepository is the sole authority on which positions are held.
type PositionsRepository interface {
	Load() ([]entity.Position, error)
	Save(positions []entity.Position) error
	Add(position entity.Position) error
	Remove(ticker string) error
	UpdateStop(ticker string, newStop float64) error
	IncrementDayCounts() ([]entity.Position, error)
}

type positionsRepository struct {
	path string
	log  *logger.Logger
}

// NewPositionsRepository creates a file-backed position store. The file is
// replaced atomically on every save so a concurrent reader always sees either
// the previous or the new complete snapshot, never a torn write.
func NewPositionsRepository(path string, log *logger.Logger) PositionsRepository {
	return &positionsRepository{path: path, log: log}
}

// Load returns the ordered list of open positions. A missing store file means
// no positions yet and is not an error.
func (r *positionsRepository) Load() ([]entity.Position, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []entity.Position{}, nil
		}
		return nil, fmt.Errorf("read positions store: %w", err)
	}

	var positions []entity.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("decode positions store: %w", err)
	}
	if positions == nil {
		positions = []entity.Position{}
	}
	return positions, nil
}

// Save atomically replaces the entire store with the given list.
func (r *positionsRepository) Save(positions []entity.Position) error {
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode positions store: %w", err)
	}
	return atomicWriteFile(r.path, data)
}

// Add appends a position for a ticker not already present.
func (r *positionsRepository) Add(position entity.Position) error {
	positions, err := r.Load()
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.Ticker == position.Ticker {
			return fmt.Errorf("%w: %s", ErrDuplicatePosition, position.Ticker)
		}
	}
	return r.Save(append(positions, position))
}

// Remove deletes the position for the given ticker. Removing an absent ticker
// is reported but not fatal.
func (r *positionsRepository) Remove(ticker string) error {
	positions, err := r.Load()
	if err != nil {
		return err
	}

	kept := positions[:0]
	found := false
	for _, p := range positions {
		if p.Ticker == ticker {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		r.log.Warn("Remove called for ticker with no open position", logger.StringField("ticker", ticker))
		return nil
	}
	return r.Save(kept)
}

// UpdateStop sets a new trailing stop for an open position. The caller is
// responsible for only ever raising the stop.
func (r *positionsRepository) UpdateStop(ticker string, newStop float64) error {
	positions, err := r.Load()
	if err != nil {
		return err
	}
	for i := range positions {
		if positions[i].Ticker == ticker {
			positions[i].CurrentStop = newStop
			return r.Save(positions)
		}
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, ticker)
}

// IncrementDayCounts bumps every open position's day count by one, persists
// the result, and returns the updated list. Called exactly once per position
// update cycle, before evaluation, so a crash mid-cycle never double-counts.
func (r *positionsRepository) IncrementDayCounts() ([]entity.Position, error) {
	positions, err := r.Load()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return positions, nil
	}
	for i := range positions {
		positions[i].DayCount++
	}
	if err := r.Save(positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// atomicWriteFile writes data to a temporary file in the destination's
// directory, syncs it, then renames it over the destination. Readers at any
// moment see either the fully-old or fully-new content.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
