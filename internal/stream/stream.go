// Package stream provides the raw data sources sensors read from. A Stream
// is bound to one ADC channel address and converts on demand.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phorp/calcrib/internal/config"
)

var (
	// ErrUnknownStream is returned for an unregistered stream type
	ErrUnknownStream = errors.New("unknown stream type")
	// ErrNotConnected is returned by Update before a successful Connect
	ErrNotConnected = errors.New("stream not connected")
)

// Stream is a source of raw conversions
type Stream interface {
	// Type returns the registered stream type
	Type() string
	// Connect binds the stream to a channel address such as "b3"
	Connect(address string) error
	// Update performs one conversion
	Update(ctx context.Context) error
	// RawValue returns the most recent conversion
	RawValue() float64
	// RawUnits returns the unit of RawValue
	RawUnits() string
}

// Resetter is implemented by streams that carry history between updates
type Resetter interface {
	Reset()
}

// Factory creates an unconnected stream
type Factory func() Stream

// Registry maps stream types to factories. Each created stream is a fresh
// instance, so sensors never share one.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory
func (r *Registry) Register(streamType string, f Factory) {
	r.factories[strings.ToLower(streamType)] = f
}

// New creates an unconnected stream of the given type
func (r *Registry) New(streamType string) (Stream, error) {
	f, ok := r.factories[strings.ToLower(streamType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStream, streamType, strings.Join(r.Types(), ", "))
	}
	return f(), nil
}

// Types returns the registered stream types in sorted order
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewDefaultRegistry registers the phorp stream over adc
func NewDefaultRegistry(cfg config.StreamConfig, adc ADC) *Registry {
	r := NewRegistry()
	r.Register(TypePhorp, func() Stream {
		return NewPhorpStream(adc, cfg.FilterConstant)
	})
	return r
}
