// Package fake implements an in-memory light strip that records every command it receives.
package fake

import (
	"context"
	"image/color"
	"sync"

	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/components/lightstrip"
)

// Op names a strip command.
type Op string

// The commands a Strip records.
const (
	OpSet    Op = "set"
	OpFill   Op = "fill"
	OpAllOff Op = "all_off"
)

// Command is one recorded call.
type Command struct {
	Op    Op
	ID    int
	Color color.NRGBA
}

// Strip keeps the state of n lights in memory. It is safe for concurrent use.
type Strip struct {
	mu      sync.Mutex
	states  []color.NRGBA
	history []Command
	closed  bool

	// SetFunc, if set, is called before a Set is applied and can fail it.
	SetFunc func(ctx context.Context, id int, c color.NRGBA) error
}

// NewStrip returns n lights, all off.
func NewStrip(n int) *Strip {
	s := &Strip{states: make([]color.NRGBA, n)}
	for i := range s.states {
		s.states[i] = lightstrip.Off
	}
	return s
}

// Len returns the number of lights.
func (s *Strip) Len() int {
	return len(s.states)
}

// Set sets light id to c.
func (s *Strip) Set(ctx context.Context, id int, c color.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if err := lightstrip.CheckID(id, len(s.states)); err != nil {
		return err
	}
	n := lightstrip.ToNRGBA(c)
	if s.SetFunc != nil {
		if err := s.SetFunc(ctx, id, n); err != nil {
			return err
		}
	}
	s.states[id] = n
	s.history = append(s.history, Command{Op: OpSet, ID: id, Color: n})
	return nil
}

// Fill sets every light to c.
func (s *Strip) Fill(ctx context.Context, c color.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	n := lightstrip.ToNRGBA(c)
	for i := range s.states {
		s.states[i] = n
	}
	s.history = append(s.history, Command{Op: OpFill, ID: -1, Color: n})
	return nil
}

// AllOff turns every light off. It works on a closed strip so cleanup paths can always run.
func (s *Strip) AllOff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.states {
		s.states[i] = lightstrip.Off
	}
	s.history = append(s.history, Command{Op: OpAllOff, ID: -1, Color: lightstrip.Off})
	return nil
}

// Close marks the strip closed.
func (s *Strip) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Strip) usable() error {
	if s.closed {
		return errors.New("strip is closed")
	}
	return nil
}

// State returns the color light id currently shows; unknown ids are off.
func (s *Strip) State(id int) color.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.states) {
		return lightstrip.Off
	}
	return s.states[id]
}

// Lit returns the ids of lights that are on, ascending.
func (s *Strip) Lit() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, c := range s.states {
		if !lightstrip.IsOff(c) {
			out = append(out, i)
		}
	}
	return out
}

// History returns a copy of every command applied so far.
func (s *Strip) History() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.history...)
}
