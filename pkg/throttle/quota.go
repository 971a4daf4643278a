package throttle

import (
	"sync"
	"time"
)

// quota holds the running usage of the current calendar month. Every read
// takes the current time so a month that has ended reads as zero even before
// the next flush stores the rollover.
type quota struct {
	mu    sync.RWMutex
	usage MonthlyUsage
	limit int64
}

func newQuota(seed MonthlyUsage, limit int64) *quota {
	return &quota{usage: seed, limit: limit}
}

// at returns the usage as of now. Caller holds mu.
func (q *quota) at(now time.Time) MonthlyUsage {
	if q.usage.Year != now.Year() || q.usage.Month != now.Month() {
		return MonthlyUsage{Year: now.Year(), Month: now.Month()}
	}
	return q.usage
}

func (q *quota) disabled(now time.Time) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.at(now).Count >= q.limit
}

// add rolls the usage over to the month of now when it differs, then adds n.
func (q *quota) add(now time.Time, n int64) MonthlyUsage {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.usage = q.at(now)
	q.usage.Count += n
	return q.usage
}

// rollover stores the switch to the month of now. It reports whether the
// stored month changed.
func (q *quota) rollover(now time.Time) (MonthlyUsage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	prev := q.usage
	q.usage = q.at(now)
	return q.usage, prev != q.usage
}

func (q *quota) snapshot(now time.Time) (MonthlyUsage, int64) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.at(now), q.limit
}

func (q *quota) setLimit(n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = n
}
