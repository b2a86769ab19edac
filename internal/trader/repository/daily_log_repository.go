package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/utils"
)

// DailyLogRepository accumulates each cycle's outputs for later display. It
// is derived, best-effort telemetry: it never feeds back into trading
// decisions and a failed write never blocks them.
type DailyLogRepository interface {
	Read() (entity.DailyLog, error)
	Write(cycle string, results interface{}) error
	Reset() error
}

type dailyLogRepository struct {
	path string
	log  *logger.Logger
	now  func() time.Time
}

// NewDailyLogRepository creates a file-backed daily log using the exchange
// clock for date rollover.
func NewDailyLogRepository(path string, log *logger.Logger) DailyLogRepository {
	return &dailyLogRepository{path: path, log: log, now: utils.TimeNowEastern}
}

// rolloverNeeded reports whether the stored log belongs to an earlier date
// and must be rebuilt before the next write. Rollover is detected lazily at
// read/write time; there is no background timer.
func rolloverNeeded(storedDate, today string) bool {
	return storedDate != today
}

// Read returns the current daily log. A missing file yields an empty log for
// today with every cycle slot pending.
func (r *dailyLogRepository) Read() (entity.DailyLog, error) {
	today := r.now().Format(utils.DateLayout)
	empty := entity.DailyLog{Date: today, Cycles: map[string]entity.CycleResult{}}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, fmt.Errorf("read daily log: %w", err)
	}

	var dl entity.DailyLog
	if err := json.Unmarshal(data, &dl); err != nil {
		return empty, fmt.Errorf("decode daily log: %w", err)
	}
	if dl.Cycles == nil {
		dl.Cycles = map[string]entity.CycleResult{}
	}
	return dl, nil
}

// Write records one cycle's results under its slot. The first write of a new
// calendar date discards the previous date's content entirely. The file is
// atomically replaced so the presentation process never sees a torn write.
func (r *dailyLogRepository) Write(cycle string, results interface{}) error {
	dl, err := r.Read()
	if err != nil {
		// A corrupt log is telemetry, not state: start over rather than fail.
		r.log.Warn("Daily log unreadable, rebuilding", logger.ErrorField(err))
	}

	now := r.now()
	today := now.Format(utils.DateLayout)
	if rolloverNeeded(dl.Date, today) {
		dl = entity.DailyLog{Date: today, Cycles: map[string]entity.CycleResult{}}
	}

	dl.Cycles[cycle] = entity.CycleResult{
		Timestamp: now,
		Results:   results,
	}

	data, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		return fmt.Errorf("encode daily log: %w", err)
	}
	return atomicWriteFile(r.path, data)
}

// Reset removes the daily log file entirely.
func (r *dailyLogRepository) Reset() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset daily log: %w", err)
	}
	return nil
}
