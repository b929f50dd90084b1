package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for run dates.
const DateLayout = "2006-01-02"

// RunRequest asks for one market to be archived for one UTC day.
type RunRequest struct {
	Date   time.Time // midnight UTC
	Market Market
}

// NewRunRequest normalizes date to midnight UTC.
func NewRunRequest(date time.Time, market Market) RunRequest {
	return RunRequest{Date: truncateDay(date), Market: market}
}

// Window returns the replay window [date, date+24h).
func (r RunRequest) Window() (from, to time.Time) {
	from = truncateDay(r.Date)
	return from, from.AddDate(0, 0, 1)
}

// Key returns the archive identity of the run.
func (r RunRequest) Key() RunKey {
	return RunKey{Exchange: r.Market.Exchange, Market: r.Market.Market, Date: truncateDay(r.Date)}
}

// String renders exchange/market@date.
func (r RunRequest) String() string {
	return r.Key().String()
}

// RunKey identifies one archived (market, date) unit.
type RunKey struct {
	Exchange string
	Market   string
	Date     time.Time
}

// String renders exchange/market@date.
func (k RunKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Exchange, k.Market, k.Date.UTC().Format(DateLayout))
}

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusError   RunStatus = "ERROR"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// RunRecord is the ledger entry written after each run.
// Corresponds to archive_runs table in PostgreSQL.
type RunRecord struct {
	RunID      string    // uuid
	Exchange   string
	Market     string
	Date       time.Time // run date, midnight UTC
	Status     RunStatus // SUCCESS | ERROR | SKIPPED
	EventCount int       // events archived, 0 unless SUCCESS
	Error      string    // error text for ERROR, reason for SKIPPED
	StartedAt  time.Time
	FinishedAt time.Time
}

// Key returns the run identity of the record.
func (r *RunRecord) Key() RunKey {
	return RunKey{Exchange: r.Exchange, Market: r.Market, Date: truncateDay(r.Date)}
}

// DatesYesterday selects the UTC day before now.
const DatesYesterday = "yesterday"

// ParseRunDates resolves "yesterday" or a comma separated list of
// YYYY-MM-DD dates into sorted, de-duplicated UTC midnights.
func ParseRunDates(value string, now time.Time) ([]time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == DatesYesterday {
		return []time.Time{truncateDay(now).AddDate(0, 0, -1)}, nil
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse(DateLayout, part)
		if err != nil {
			return nil, fmt.Errorf("invalid run date %q: want %s or %q", part, DateLayout, DatesYesterday)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no run dates in %q", value)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
