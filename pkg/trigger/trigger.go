// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package trigger implements breakpoint-like hooks that are active only in a given execution context.
//
// A trigger is bound to a location (a source line or an instruction address) and to the name of
// an execution context (the comm of the current task). The host debugger reports stop events;
// the trigger ignores stops while it is disabled or while another context is running,
// and otherwise invokes its hook. Hooks receive a session value owned by the driver and
// may enable or disable any trigger, including themselves, to order multi-stage scenarios.
package trigger

import (
	"fmt"
)

type State int

const (
	Disabled State = iota
	Armed
	Firing
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot describes the execution context of a stop event.
// ContextName is called only for armed triggers, so implementations may evaluate it lazily.
type Snapshot interface {
	ContextName() (string, error)
}

// Comm is a Snapshot with an already known context name.
type Comm string

func (c Comm) ContextName() (string, error) {
	return string(c), nil
}

// Hook is invoked when an armed trigger is hit in its context.
// It returns whether the host should keep the debuggee paused.
type Hook[S any] func(sess S) (pause bool, err error)

type Trigger[S any] struct {
	name     string
	location string
	context  string
	hook     Hook[S]
	state    State
	hits     int
}

type Option func(*options)

type options struct {
	disabled bool
}

// StartDisabled creates the trigger in the Disabled state; it stays inert until enabled.
func StartDisabled() Option {
	return func(o *options) { o.disabled = true }
}

func New[S any](name, location, context string, hook Hook[S], opts ...Option) *Trigger[S] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	t := &Trigger[S]{
		name:     name,
		location: location,
		context:  context,
		hook:     hook,
		state:    Armed,
	}
	if o.disabled {
		t.state = Disabled
	}
	return t
}

func (t *Trigger[S]) Name() string     { return t.name }
func (t *Trigger[S]) Location() string { return t.location }
func (t *Trigger[S]) Context() string  { return t.context }
func (t *Trigger[S]) State() State     { return t.state }
func (t *Trigger[S]) Hits() int        { return t.hits }

// Enabled reports whether the trigger reacts to stop events (it is Armed or Firing).
func (t *Trigger[S]) Enabled() bool {
	return t.state != Disabled
}

// Enable arms a disabled trigger. Enabling an armed or firing trigger is a no-op.
func (t *Trigger[S]) Enable() {
	if t.state == Disabled {
		t.state = Armed
	}
}

// Disable makes the trigger inert. A hook may disable its own trigger while firing.
func (t *Trigger[S]) Disable() {
	t.state = Disabled
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeMismatch
	outcomeFired
	outcomeNoContext
)

// OnStop handles a stop event at the trigger's location and returns whether the host should pause.
// Errors abort the hook and always request a pause, so that the operator can inspect the debuggee.
func (t *Trigger[S]) OnStop(snap Snapshot, sess S) (bool, error) {
	_, pause, err := t.onStop(snap, sess)
	return pause, err
}

func (t *Trigger[S]) onStop(snap Snapshot, sess S) (outcome, bool, error) {
	if t.state != Armed {
		return outcomeSkipped, false, nil
	}
	name, err := snap.ContextName()
	if err != nil {
		return outcomeNoContext, true, fmt.Errorf("trigger %v: failed to get current context: %w", t.name, err)
	}
	if name != t.context {
		return outcomeMismatch, false, nil
	}
	t.state = Firing
	t.hits++
	pause, err := t.hook(sess)
	if t.state == Firing {
		t.state = Armed
	}
	if err != nil {
		return outcomeFired, true, fmt.Errorf("trigger %v: %w", t.name, err)
	}
	return outcomeFired, pause, nil
}

func (t *Trigger[S]) String() string {
	return fmt.Sprintf("%v at %v [%v] (%v, %v hits)", t.name, t.location, t.context, t.state, t.hits)
}
