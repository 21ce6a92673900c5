package setpoint

import (
	"context"
	"errors"
	"time"
)

type scriptedKeys struct {
	keys []rune
	read int
}

func (k *scriptedKeys) ReadKey() (rune, error) {
	if k.read >= len(k.keys) {
		return 0, errors.New("no more keys")
	}
	r := k.keys[k.read]
	k.read++
	return r, nil
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

// countingSource returns 1, 2, 3... and spends cost on the clock per update.
// costs overrides cost for single updates, keyed by update number.
type countingSource struct {
	clock   *fakeClock
	cost    time.Duration
	costs   map[int]time.Duration
	updates int
	failAt  int
}

func (s *countingSource) Update(ctx context.Context) error {
	if s.failAt > 0 && s.updates+1 == s.failAt {
		return errors.New("bus error")
	}
	s.updates++
	if s.clock != nil {
		cost, ok := s.costs[s.updates]
		if !ok {
			cost = s.cost
		}
		s.clock.now = s.clock.now.Add(cost)
	}
	return nil
}

func (s *countingSource) RawValue() float64 {
	return float64(s.updates)
}

func (s *countingSource) RawUnits() string {
	return "mV"
}
