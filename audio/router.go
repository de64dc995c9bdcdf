package audio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSink is returned when a sink is addressed by a name the router
// does not know.
var ErrUnknownSink = errors.New("unknown sink")

// Router manages several audio sinks.
type Router interface {
	AddSink(string, Sink, bool)
	RemoveSink(string) error
	Sink(string) (Sink, error)
	Sinks() []string
	EnableSink(string, bool) error
	Write(Msg) error
	Flush()
}

type sink struct {
	Sink
	active bool
}

// DefaultRouter is the standard manager for audio sinks.
type DefaultRouter struct {
	sync.RWMutex // for map & variables
	sinks        map[string]*sink
}

// NewDefaultRouter returns an initialized default router for audio sinks.
func NewDefaultRouter() *DefaultRouter {
	return &DefaultRouter{
		sinks: make(map[string]*sink),
	}
}

// Write will write the Msg to all enabled audio sinks. Every sink gets its
// own copy of the data. Errors of individual sinks are collected in a
// SinkError each and returned together.
func (r *DefaultRouter) Write(msg Msg) error {
	r.RLock()
	defer r.RUnlock()

	var errs []error
	for name, s := range r.sinks {
		if !s.active {
			continue
		}
		m := msg
		m.Data = append([]float32(nil), msg.Data...)
		if err := s.Write(m); err != nil {
			errs = append(errs, &SinkError{Name: name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// AddSink adds an audio device which satisfies the Sink interface. When marked
// as active, incoming audio Msgs will be written to this device.
func (r *DefaultRouter) AddSink(name string, s Sink, active bool) {
	r.Lock()
	defer r.Unlock()
	r.sinks[name] = &sink{s, active}
}

// RemoveSink removes an audio sink.
func (r *DefaultRouter) RemoveSink(name string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.sinks[name]; !ok {
		return fmt.Errorf("%w %s", ErrUnknownSink, name)
	}
	delete(r.sinks, name)
	return nil
}

// Sink returns the requested audio Sink from the router.
func (r *DefaultRouter) Sink(name string) (Sink, error) {
	r.RLock()
	defer r.RUnlock()
	s, ok := r.sinks[name]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownSink, name)
	}
	return s.Sink, nil
}

// Sinks returns the names of all sinks in alphabetical order.
func (r *DefaultRouter) Sinks() []string {
	r.RLock()
	defer r.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnableSink will mark the audio Sink as active, so that incoming audio
// Msgs will be written to it.
func (r *DefaultRouter) EnableSink(name string, active bool) error {
	r.Lock()
	defer r.Unlock()
	s, ok := r.sinks[name]
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownSink, name)
	}
	s.active = active
	if s.active {
		return s.Start()
	}
	return s.Stop()
}

// Flush flushes the buffers of all active sinks.
func (r *DefaultRouter) Flush() {
	r.RLock()
	defer r.RUnlock()
	for _, s := range r.sinks {
		if s.active {
			s.Flush()
		}
	}
}

// SinkError is an Error which is used when data could not be written to
// a particular audio Sink.
type SinkError struct {
	Name string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Name, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
