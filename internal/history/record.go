package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

// Entry is one logged estimate.
type Entry struct {
	ID         string          `db:"id" json:"id"`
	RecordedAt time.Time       `db:"recorded_at" json:"recorded_at"`
	Turbidity  float64         `db:"turbidity" json:"turbidity"`
	PH         float64         `db:"ph" json:"ph"`
	Flow       float64         `db:"flow" json:"flow"`
	RegimeFlow float64         `db:"regime_flow" json:"regime_flow"`
	Dose       float64         `db:"dose" json:"dose"`
	Method     dosing.Method   `db:"method" json:"method"`
	Category   dosing.Category `db:"category" json:"category"`
}

// NewEntry turns an estimate outcome into a history entry stamped at.
func NewEntry(o dosing.Outcome, at time.Time) Entry {
	return Entry{
		ID:         uuid.NewString(),
		RecordedAt: at.UTC().Truncate(time.Microsecond),
		Turbidity:  o.Turbidity,
		PH:         o.PH,
		Flow:       o.RequestedFlow,
		RegimeFlow: o.RegimeFlow,
		Dose:       o.Dose,
		Method:     o.Method,
		Category:   o.Category,
	}
}

// Filter narrows List results. Zero values mean unbounded.
type Filter struct {
	Since time.Time
	Until time.Time
	Limit int
}

func (f Filter) match(at time.Time) bool {
	if !f.Since.IsZero() && at.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !at.Before(f.Until) {
		return false
	}
	return true
}
