// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package trigger

import (
	"errors"
	"fmt"
)

var ErrUnknownLocation = errors.New("no triggers at location")

// Set dispatches stop events to the triggers registered at the stop location.
// It is not safe for concurrent use: stop events and hooks are handled one at a time.
type Set[S any] struct {
	triggers  []*Trigger[S]
	byName    map[string]*Trigger[S]
	byLoc     map[string][]*Trigger[S]
	locations []string
	stats     Stats
}

type Stats struct {
	Stops      int // stop events at known locations
	Skipped    int // trigger evaluations skipped because the trigger was disabled
	Mismatched int // trigger evaluations in a foreign context
	Fired      int
	Errors     int
}

func NewSet[S any]() *Set[S] {
	return &Set[S]{
		byName: make(map[string]*Trigger[S]),
		byLoc:  make(map[string][]*Trigger[S]),
	}
}

func (s *Set[S]) Add(t *Trigger[S]) error {
	if t.name == "" || t.location == "" {
		return fmt.Errorf("trigger needs a name and a location")
	}
	if s.byName[t.name] != nil {
		return fmt.Errorf("duplicate trigger %v", t.name)
	}
	s.triggers = append(s.triggers, t)
	s.byName[t.name] = t
	if len(s.byLoc[t.location]) == 0 {
		s.locations = append(s.locations, t.location)
	}
	s.byLoc[t.location] = append(s.byLoc[t.location], t)
	return nil
}

func (s *Set[S]) Lookup(name string) *Trigger[S] {
	return s.byName[name]
}

func (s *Set[S]) Enable(name string) error {
	t := s.byName[name]
	if t == nil {
		return fmt.Errorf("no trigger %v", name)
	}
	t.Enable()
	return nil
}

func (s *Set[S]) Disable(name string) error {
	t := s.byName[name]
	if t == nil {
		return fmt.Errorf("no trigger %v", name)
	}
	t.Disable()
	return nil
}

// Triggers returns all triggers in registration order.
func (s *Set[S]) Triggers() []*Trigger[S] {
	return s.triggers
}

// Locations returns distinct trigger locations in registration order.
func (s *Set[S]) Locations() []string {
	return s.locations
}

func (s *Set[S]) At(location string) []*Trigger[S] {
	return s.byLoc[location]
}

// Armed reports whether any trigger at the location can react to a stop.
// The driver uses it to keep host breakpoints disabled while nothing listens on them.
func (s *Set[S]) Armed(location string) bool {
	for _, t := range s.byLoc[location] {
		if t.Enabled() {
			return true
		}
	}
	return false
}

func (s *Set[S]) Stats() Stats {
	return s.stats
}

// OnStopEvent runs all triggers registered at location in registration order
// and returns whether the host should keep the debuggee paused.
// A failing hook stops the dispatch; the remaining triggers are not run for this stop.
func (s *Set[S]) OnStopEvent(location string, snap Snapshot, sess S) (bool, error) {
	triggers := s.byLoc[location]
	if len(triggers) == 0 {
		return true, fmt.Errorf("%w %v", ErrUnknownLocation, location)
	}
	s.stats.Stops++
	pause := false
	for _, t := range triggers {
		res, p, err := t.onStop(snap, sess)
		switch res {
		case outcomeSkipped:
			s.stats.Skipped++
		case outcomeMismatch:
			s.stats.Mismatched++
		case outcomeFired:
			s.stats.Fired++
		}
		if err != nil {
			s.stats.Errors++
			return true, err
		}
		pause = pause || p
	}
	return pause, nil
}

// Summary is a copy of trigger state for reporting.
type Summary struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Context  string `json:"context"`
	State    string `json:"state"`
	Hits     int    `json:"hits"`
}

func (s *Set[S]) Summaries() []Summary {
	res := make([]Summary, 0, len(s.triggers))
	for _, t := range s.triggers {
		res = append(res, Summary{
			Name:     t.name,
			Location: t.location,
			Context:  t.context,
			State:    t.state.String(),
			Hits:     t.hits,
		})
	}
	return res
}
