// Package outputs holds the bank of named switch lines bound to physical
// outputs. The bank is a pure state holder: it is created once at startup
// and mutated only from the supervisor loop's command handling, so it needs
// no locking.
package outputs

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// Line binds a logical switch name to a physical pin number.
type Line struct {
	Name string `mapstructure:"name" yaml:"name"`
	Pin  int    `mapstructure:"pin" yaml:"pin"`
}

// DefaultLines mirrors the NodeMCU d0..d8 header pins.
func DefaultLines() []Line {
	return []Line{
		{Name: "d0", Pin: 16},
		{Name: "d1", Pin: 5},
		{Name: "d2", Pin: 4},
		{Name: "d3", Pin: 0},
		{Name: "d4", Pin: 2},
		{Name: "d5", Pin: 14},
		{Name: "d6", Pin: 12},
		{Name: "d7", Pin: 13},
		{Name: "d8", Pin: 15},
	}
}

// Bank is the set of output lines. Names are unique case-insensitively.
type Bank struct {
	backend Backend
	lines   []Line
	states  map[string]bool // keyed by lowercased name
	log     logr.Logger
}

// NewBank drives every line to OFF and returns the bank. A duplicate name
// in the table is a configuration error.
func NewBank(log logr.Logger, backend Backend, lines []Line) (*Bank, error) {
	if len(lines) == 0 {
		lines = DefaultLines()
	}
	b := &Bank{
		backend: backend,
		lines:   lines,
		states:  make(map[string]bool, len(lines)),
		log:     log.WithName("outputs"),
	}
	for _, line := range lines {
		key := strings.ToLower(line.Name)
		if _, dup := b.states[key]; dup {
			return nil, fmt.Errorf("duplicate output line name %q", line.Name)
		}
		if err := backend.Write(line.Pin, 0); err != nil {
			return nil, fmt.Errorf("initializing line %q: %w", line.Name, err)
		}
		b.states[key] = false
	}
	b.log.Info("All output lines initialized", "count", len(lines), "state", "off")
	return b, nil
}

// Set drives the named line. The lookup is case-insensitive; an unknown
// name reports ok=false and changes nothing. A backend write failure is an
// error and the line keeps its previous recorded state.
func (b *Bank) Set(name string, on bool) (ok bool, err error) {
	key := strings.ToLower(name)
	if _, known := b.states[key]; !known {
		return false, nil
	}
	value := 0
	if on {
		value = 1
	}
	pin := b.pin(key)
	if err := b.backend.Write(pin, value); err != nil {
		return false, fmt.Errorf("driving line %q (pin %d): %w", key, pin, err)
	}
	b.states[key] = on
	return true, nil
}

// Get reports the current state of the named line.
func (b *Bank) Get(name string) (on bool, ok bool) {
	on, ok = b.states[strings.ToLower(name)]
	return
}

// Snapshot reports every line as "on" or "off", always complete.
func (b *Bank) Snapshot() map[string]string {
	out := make(map[string]string, len(b.lines))
	for _, line := range b.lines {
		v := "off"
		if b.states[strings.ToLower(line.Name)] {
			v = "on"
		}
		out[strings.ToLower(line.Name)] = v
	}
	return out
}

// Names lists the line names in table order.
func (b *Bank) Names() []string {
	names := make([]string, len(b.lines))
	for i, line := range b.lines {
		names[i] = strings.ToLower(line.Name)
	}
	return names
}

func (b *Bank) pin(key string) int {
	for _, line := range b.lines {
		if strings.ToLower(line.Name) == key {
			return line.Pin
		}
	}
	return -1
}
