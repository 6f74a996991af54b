// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package scenario defines traced scenarios as tables of stages
// and builds trigger sets out of them.
package scenario

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/kaddr"
	"github.com/google/lkd/pkg/trigger"
)

// Stage is one row of a scenario table.
type Stage struct {
	Name     string
	Location string
	// Labels of the reports the stage may print, for listings.
	Reports []string
	Hook    trigger.Hook[*Session]
}

type Scenario struct {
	Name        string
	Description string
	Stages      []*Stage
	Defaults    Params
}

// Params are the resolved parameters of one traced scenario.
type Params struct {
	// Context is the comm of the task whose execution is traced.
	Context string
	// TargetFile is the name of the file whose page cache is attacked.
	TargetFile string
	// TaskExpr evaluates to a pointer to the current task.
	TaskExpr string
	// Locations overrides stage locations: "file:line", "function" or "*0xADDR".
	Locations map[string]string
	// Stages restricts the scenario to a subset of stages.
	Stages []string
	// Ordered arms only the first stage initially; every stage arms the next one once it reports.
	Ordered bool
	// Terminate ends the debugging session after the FinalStage report.
	Terminate  bool
	FinalStage string
	// PauseAfter lists report ids (e.g. "3.2") after which the debuggee stays paused.
	PauseAfter []string
	PageShift  uint
}

// Overrides are user parameters merged over the scenario defaults.
// Nil pointer fields keep the default, so false and 0 can be set explicitly.
type Overrides struct {
	Context    string            `json:"context,omitempty" yaml:"context,omitempty"`
	TargetFile string            `json:"target_file,omitempty" yaml:"target_file,omitempty"`
	TaskExpr   string            `json:"task_expr,omitempty" yaml:"task_expr,omitempty"`
	Locations  map[string]string `json:"locations,omitempty" yaml:"locations,omitempty"`
	Stages     []string          `json:"stages,omitempty" yaml:"stages,omitempty"`
	Ordered    *bool             `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	Terminate  *bool             `json:"terminate,omitempty" yaml:"terminate,omitempty"`
	FinalStage string            `json:"final_stage,omitempty" yaml:"final_stage,omitempty"`
	PauseAfter []string          `json:"pause_after,omitempty" yaml:"pause_after,omitempty"`
	PageShift  *uint             `json:"page_shift,omitempty" yaml:"page_shift,omitempty"`
}

var scenarios = make(map[string]*Scenario)

func Register(sc *Scenario) {
	if scenarios[sc.Name] != nil {
		panic(fmt.Sprintf("duplicate scenario %v", sc.Name))
	}
	scenarios[sc.Name] = sc
}

func Lookup(name string) (*Scenario, error) {
	sc := scenarios[name]
	if sc == nil {
		return nil, fmt.Errorf("unknown scenario %q, known: %v", name, Names())
	}
	return sc, nil
}

func Names() []string {
	return slices.Sorted(maps.Keys(scenarios))
}

// Params merges user parameters over the scenario defaults.
func (sc *Scenario) Params(user *Overrides) *Params {
	p := sc.Defaults
	p.Locations = maps.Clone(sc.Defaults.Locations)
	if p.PageShift == 0 {
		p.PageShift = kaddr.DefaultPageShift
	}
	if p.TaskExpr == "" {
		p.TaskExpr = "&$lx_current()"
	}
	if user == nil {
		return &p
	}
	if user.Context != "" {
		p.Context = user.Context
	}
	if user.TargetFile != "" {
		p.TargetFile = user.TargetFile
	}
	if user.TaskExpr != "" {
		p.TaskExpr = user.TaskExpr
	}
	for stage, loc := range user.Locations {
		if p.Locations == nil {
			p.Locations = make(map[string]string)
		}
		p.Locations[stage] = loc
	}
	if len(user.Stages) != 0 {
		p.Stages = user.Stages
	}
	if user.Ordered != nil {
		p.Ordered = *user.Ordered
	}
	if user.Terminate != nil {
		p.Terminate = *user.Terminate
	}
	if user.FinalStage != "" {
		p.FinalStage = user.FinalStage
	}
	if len(user.PauseAfter) != 0 {
		p.PauseAfter = user.PauseAfter
	}
	if user.PageShift != nil {
		p.PageShift = *user.PageShift
	}
	return &p
}

// Build creates triggers for the session's scenario parameters.
func (sc *Scenario) Build(sess *Session) (*trigger.Set[*Session], error) {
	p := sess.Params
	for name := range p.Locations {
		if sc.stage(name) == nil {
			return nil, fmt.Errorf("location override for unknown stage %q", name)
		}
	}
	var stages []*Stage
	for _, st := range sc.Stages {
		if len(p.Stages) == 0 || slices.Contains(p.Stages, st.Name) {
			stages = append(stages, st)
		}
	}
	for _, name := range p.Stages {
		if sc.stage(name) == nil {
			return nil, fmt.Errorf("unknown stage %q in scenario %v", name, sc.Name)
		}
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("scenario %v has no stages to trace", sc.Name)
	}
	set := trigger.NewSet[*Session]()
	for i, st := range stages {
		where := st.Location
		if override := p.Locations[st.Name]; override != "" {
			where = override
		}
		loc, err := debugger.ParseLocation(where)
		if err != nil {
			return nil, fmt.Errorf("stage %v: %w", st.Name, err)
		}
		var opts []trigger.Option
		if p.Ordered && i != 0 {
			opts = append(opts, trigger.StartDisabled())
		}
		next := ""
		if p.Ordered && i+1 < len(stages) {
			next = stages[i+1].Name
		}
		t := trigger.New(st.Name, loc.String(), p.Context, arming(st.Hook, next), opts...)
		if err := set.Add(t); err != nil {
			return nil, err
		}
	}
	sess.Triggers = set
	return set, nil
}

func (sc *Scenario) stage(name string) *Stage {
	for _, st := range sc.Stages {
		if st.Name == name {
			return st
		}
	}
	return nil
}

// arming wraps a hook to arm the next stage after the hook printed a report.
func arming(hook trigger.Hook[*Session], next string) trigger.Hook[*Session] {
	if next == "" {
		return hook
	}
	return func(sess *Session) (bool, error) {
		printed := sess.Printer.Total()
		pause, err := hook(sess)
		if err == nil && sess.Printer.Total() != printed {
			if err := sess.Triggers.Enable(next); err != nil {
				return true, err
			}
		}
		return pause, err
	}
}
