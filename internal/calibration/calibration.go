// Package calibration tracks a fitted equation together with the date it
// was produced and how long it stays valid.
package calibration

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
)

const (
	day             = 24 * time.Hour
	equationSection = "equation"
)

// Epoch is the timestamp of a calibration that was never run
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Calibration wraps an equation with validity metadata. An Interval of zero
// means the calibration never expires.
type Calibration struct {
	Timestamp   time.Time
	Interval    time.Duration
	ScaledUnits string
	Equation    equation.Equation
	RunID       uuid.UUID
}

// New returns an invalid calibration: epoch timestamp, no interval and no
// equation
func New() *Calibration {
	return &Calibration{Timestamp: Epoch}
}

// Days returns an interval of n whole days
func Days(n int) time.Duration {
	return time.Duration(n) * day
}

// IntervalDays returns the interval in whole days
func (c *Calibration) IntervalDays() int {
	return int(c.Interval / day)
}

// Expires reports whether the calibration has a due date
func (c *Calibration) Expires() bool {
	return c.Interval != 0
}

// DueDate returns timestamp + interval. It is meaningless when Expires is false.
func (c *Calibration) DueDate() time.Time {
	return c.Timestamp.Add(c.Interval)
}

// DueString renders the due date, or a note when none is required
func (c *Calibration) DueString() string {
	if !c.Expires() {
		return "none required"
	}
	return c.DueDate().Format("2006-01-02")
}

// IsValid reports whether the calibration can be used on the given day.
// It must have been committed with an equation; without an interval it
// never expires, otherwise the due date must lie after today.
func (c *Calibration) IsValid(today time.Time) bool {
	if c.Equation == nil || !c.Committed() {
		return false
	}
	if !c.Expires() {
		return true
	}
	return c.DueDate().After(document.Date(today))
}

// Committed reports whether a run ever stamped the calibration
func (c *Calibration) Committed() bool {
	return c.Timestamp.After(Epoch)
}

// Commit stamps a successful fit with today's date and a new run id
func (c *Calibration) Commit(today time.Time, runID uuid.UUID) {
	c.Timestamp = document.Date(today)
	c.RunID = runID
}

// EvaluateY converts a raw value to scaled units. Without an equation the
// raw value is returned unchanged.
func (c *Calibration) EvaluateY(raw float64) float64 {
	if c.Equation == nil {
		return raw
	}
	return c.Equation.EvaluateY(raw)
}

// EvaluateX converts a scaled value to raw units
func (c *Calibration) EvaluateX(scaled float64) float64 {
	if c.Equation == nil {
		return scaled
	}
	return c.Equation.EvaluateX(scaled)
}

// Clone returns a deep copy
func (c *Calibration) Clone() *Calibration {
	clone := *c
	if c.Equation != nil {
		clone.Equation = c.Equation.Clone()
	}
	return &clone
}

// Synopsis returns a one line description
func (c *Calibration) Synopsis() string {
	eq := "no equation"
	if c.Equation != nil {
		eq = c.Equation.Synopsis()
	}
	return fmt.Sprintf("%s, units %q, calibrated %s, due %s",
		eq, c.ScaledUnits, c.Timestamp.Format("2006-01-02"), c.DueString())
}

// Pack writes the calibration and its equation into sec
func (c *Calibration) Pack(sec *document.Section) {
	sec.SetString("scaled_units", c.ScaledUnits)
	sec.SetDate("timestamp", c.Timestamp)
	sec.SetInt("interval", c.IntervalDays())
	if c.RunID != uuid.Nil {
		sec.SetString("run_id", c.RunID.String())
	}
	if c.Equation != nil {
		c.Equation.Pack(sec.Child(equationSection))
	}
}

// Unpack reads a calibration written by Pack. Missing keys keep the values
// of New.
func Unpack(sec *document.Section) (*Calibration, error) {
	c := New()
	c.ScaledUnits = sec.GetString("scaled_units", "")

	var err error
	if c.Timestamp, err = sec.GetDate("timestamp", Epoch); err != nil {
		return nil, err
	}

	days, err := sec.GetInt("interval", 0)
	if err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "interval", Err: fmt.Errorf("negative interval %d", days)}
	}
	c.Interval = Days(days)

	if text := sec.GetString("run_id", ""); text != "" {
		if c.RunID, err = uuid.Parse(text); err != nil {
			return nil, &document.DecodeError{Path: sec.Path(), Key: "run_id", Err: err}
		}
	}

	if eqSec, ok := sec.Lookup(equationSection); ok {
		if c.Equation, err = equation.Unpack(eqSec); err != nil {
			return nil, err
		}
	}
	return c, nil
}
