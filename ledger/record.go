package ledger

import "time"

// Record is the per-user violation state. Count and LastViolationAt move
// together: a zero Count always has a nil timestamp.
type Record struct {
	UserID          int64 `gorm:"primaryKey"`
	Count           int
	LastViolationAt *time.Time
}

func (Record) TableName() string {
	return "violation_records"
}

// Stale reports whether the record's last violation is older than the decay
// window as of now.
func (r *Record) Stale(now time.Time, decay time.Duration) bool {
	return r.LastViolationAt == nil || now.Sub(*r.LastViolationAt) > decay
}
