package sensor

import (
	"fmt"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
)

// Collection holds sensors keyed by normalized id in insertion order and
// tracks the selected sensor
type Collection struct {
	order    []string
	sensors  map[string]*Sensor
	selected int
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{sensors: make(map[string]*Sensor)}
}

// Len returns the number of sensors
func (c *Collection) Len() int {
	return len(c.order)
}

// Contains reports whether id, after normalization, is present
func (c *Collection) Contains(id string) bool {
	_, ok := c.sensors[NormalizeID(id)]
	return ok
}

// Add inserts s and selects it. An existing id is rejected and the
// collection is left untouched.
func (c *Collection) Add(s *Sensor) error {
	if _, ok := c.sensors[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSensor, s.ID)
	}
	c.sensors[s.ID] = s
	c.order = append(c.order, s.ID)
	c.selected = len(c.order) - 1
	return nil
}

// Get returns the sensor with the given id
func (c *Collection) Get(id string) (*Sensor, error) {
	key := NormalizeID(id)
	s, ok := c.sensors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}
	return s, nil
}

// Delete removes the sensor with the given id
func (c *Collection) Delete(id string) error {
	key := NormalizeID(id)
	if _, ok := c.sensors[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}
	delete(c.sensors, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.clamp()
	return nil
}

// All returns the sensors in insertion order
func (c *Collection) All() []*Sensor {
	all := make([]*Sensor, len(c.order))
	for i, k := range c.order {
		all[i] = c.sensors[k]
	}
	return all
}

// Selected returns the selected sensor, false when empty
func (c *Collection) Selected() (*Sensor, bool) {
	if len(c.order) == 0 {
		return nil, false
	}
	return c.sensors[c.order[c.selected]], true
}

// SelectedIndex returns the position of the selected sensor
func (c *Collection) SelectedIndex() int {
	return c.selected
}

// Select selects the sensor with the given id
func (c *Collection) Select(id string) error {
	key := NormalizeID(id)
	for i, k := range c.order {
		if k == key {
			c.selected = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSensorNotFound, key)
}

// Next selects the following sensor, stopping at the last
func (c *Collection) Next() {
	c.selected++
	c.clamp()
}

// Prev selects the preceding sensor, stopping at the first
func (c *Collection) Prev() {
	c.selected--
	c.clamp()
}

func (c *Collection) clamp() {
	if c.selected > len(c.order)-1 {
		c.selected = len(c.order) - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
}

// Pack writes every sensor as a subsection of sec keyed by id
func (c *Collection) Pack(sec *document.Section) {
	for _, s := range c.All() {
		s.Pack(sec.Child(s.ID))
	}
}

// UnpackCollection reads sensors written by Pack. Any invalid or duplicate
// sensor fails the whole collection.
func UnpackCollection(sec *document.Section, sampling config.SamplingConfig) (*Collection, error) {
	c := NewCollection()
	for _, child := range sec.Children() {
		s, err := Unpack(child, sampling)
		if err != nil {
			return nil, err
		}
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	c.selected = 0
	return c, nil
}
