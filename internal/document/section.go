// Package document implements the hierarchical key-path text format used to
// persist procedures, sensors and calibrations.
//
// A document is a tree of sections. Each section is emitted as a header built
// from its dotted path followed by flat key = value lines:
//
//	[sensors.tank3.calibration]
//	scaled_units = "pH"
//	timestamp = "2026-10-18"
//	interval = 180
//
// The text is a strict subset of TOML; parsing preserves section and key order.
package document

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phorp/calcrib/internal/utils"
)

// ErrNotFound is returned when a named document does not exist
var ErrNotFound = errors.New("document not found")

// DecodeError reports the section path and key whose value could not be decoded
type DecodeError struct {
	Path string
	Key  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Path, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Section is one node of a document. The root section has an empty name.
type Section struct {
	name     string
	parent   *Section
	keys     []string
	values   map[string]interface{}
	children []*Section
	index    map[string]*Section
}

// New returns an empty document root
func New() *Section {
	return newSection("", nil)
}

func newSection(name string, parent *Section) *Section {
	return &Section{
		name:   name,
		parent: parent,
		values: make(map[string]interface{}),
		index:  make(map[string]*Section),
	}
}

// Name returns the last path element of the section
func (s *Section) Name() string {
	return s.name
}

// Path returns the dotted path of the section from the root
func (s *Section) Path() string {
	return strings.Join(s.pathElements(), ".")
}

func (s *Section) pathElements() []string {
	if s.parent == nil {
		return nil
	}
	return append(s.parent.pathElements(), s.name)
}

// Child returns the named subsection, creating it if needed
func (s *Section) Child(name string) *Section {
	if c, ok := s.index[name]; ok {
		return c
	}
	c := newSection(name, s)
	s.children = append(s.children, c)
	s.index[name] = c
	return c
}

// Lookup returns the named subsection if present
func (s *Section) Lookup(name string) (*Section, bool) {
	c, ok := s.index[name]
	return c, ok
}

// Walk follows a dotted path of subsections
func (s *Section) Walk(path string) (*Section, bool) {
	cur := s
	for _, name := range strings.Split(path, ".") {
		next, ok := cur.Lookup(name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Children returns the subsections in insertion order
func (s *Section) Children() []*Section {
	return s.children
}

// Keys returns the value keys in insertion order
func (s *Section) Keys() []string {
	return s.keys
}

// Has reports whether key holds a value
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Value returns the raw decoded value of key
func (s *Section) Value(key string) (interface{}, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Section) set(key string, v interface{}) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// SetString stores a string value
func (s *Section) SetString(key, v string) {
	s.set(key, v)
}

// SetFloat stores a float value
func (s *Section) SetFloat(key string, v float64) {
	s.set(key, v)
}

// SetInt stores an integer value
func (s *Section) SetInt(key string, v int) {
	s.set(key, int64(v))
}

// SetBool stores a boolean value
func (s *Section) SetBool(key string, v bool) {
	s.set(key, v)
}

// SetDate stores the calendar date of t as an ISO date string
func (s *Section) SetDate(key string, t time.Time) {
	s.set(key, t.Format(utils.DateLayout))
}

func (s *Section) decodeErr(key string, err error) error {
	return &DecodeError{Path: s.Path(), Key: key, Err: err}
}

// GetString returns the string value of key, or def when missing.
// Non-string scalars are rendered in their text form.
func (s *Section) GetString(key, def string) string {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

// GetFloat returns the numeric value of key, or def when missing
func (s *Section) GetFloat(key string, def float64) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	f, ok := utils.ToFloat64(v)
	if !ok {
		return def, s.decodeErr(key, fmt.Errorf("not a number: %v", v))
	}
	return f, nil
}

// GetInt returns the integer value of key, or def when missing
func (s *Section) GetInt(key string, def int) (int, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	i, ok := utils.ToInt(v)
	if !ok {
		return def, s.decodeErr(key, fmt.Errorf("not an integer: %v", v))
	}
	return i, nil
}

// GetBool returns the boolean value of key, or def when missing
func (s *Section) GetBool(key string, def bool) (bool, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, s.decodeErr(key, fmt.Errorf("not a boolean: %v", v))
	}
	return b, nil
}

// GetDate returns the calendar date stored under key as UTC midnight, or def
// when missing. ISO dates and date-times are accepted.
func (s *Section) GetDate(key string, def time.Time) (time.Time, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	text, ok := v.(string)
	if !ok {
		return def, s.decodeErr(key, fmt.Errorf("not a date: %v", v))
	}
	t, err := ParseDate(text)
	if err != nil {
		return def, s.decodeErr(key, err)
	}
	return t, nil
}

// ParseDate parses an ISO date (optionally followed by a time) into UTC midnight
func ParseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if len(text) > len(utils.DateLayout) {
		text = text[:len(utils.DateLayout)]
	}
	t, err := time.Parse(utils.DateLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", text)
	}
	return t, nil
}

// Date truncates t to its calendar date at UTC midnight
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return fmt.Sprint(f)
}
