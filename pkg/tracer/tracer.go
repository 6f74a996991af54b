// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tracer drives a scenario: it installs host breakpoints for the scenario triggers,
// resumes the debuggee and dispatches every stop to the triggers at the stop location.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/scenario"
	"github.com/google/lkd/pkg/stage"
	"github.com/google/lkd/pkg/stat"
	"github.com/google/lkd/pkg/trigger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// Expression evaluating to the comm of the current task.
	ContextExpr string
	// Install the context check as host breakpoint conditions.
	HostConditions bool
	// Keep the debuggee paused after hook errors instead of ending the run.
	PauseOnError bool
	// Pauser waits for the operator while the debuggee is paused. Nil means never pause.
	Pauser Pauser
	// Stats receives the tracer metrics. Nil means a set exported to the default Prometheus registry.
	Stats *stat.Set
}

type Tracer struct {
	ID       string
	opts     Options
	host     debugger.Host
	scenario *scenario.Scenario
	sess     *scenario.Session
	set      *trigger.Set[*scenario.Session]

	bps   map[string]*breakpoint
	byID  map[debugger.BreakpointID]*breakpoint
	stats *stats

	statusMu sync.Mutex
	status   Status
}

type breakpoint struct {
	id       debugger.BreakpointID
	location string
	enabled  bool
}

type stats struct {
	stops     *stat.Val
	foreign   *stat.Val
	fired     *stat.Val
	errors    *stat.Val
	reports   *stat.Val
	pauses    *stat.Val
	hookTime  *stat.Val
	stopDelay *stat.Val
}

func newStats(set *stat.Set) *stats {
	return &stats{
		stops:     set.New("stops", "Breakpoint stops reported by the host", stat.Console, stat.Rate{}, stat.Prometheus("lkd_stops")),
		foreign:   set.New("foreign stops", "Stops in a foreign context", stat.Prometheus("lkd_foreign_stops")),
		fired:     set.New("fired", "Trigger hooks run", stat.Console, stat.Prometheus("lkd_triggers_fired")),
		errors:    set.New("hook errors", "Failed trigger hooks", stat.Console, stat.Prometheus("lkd_hook_errors")),
		reports:   set.New("reports", "Printed stage reports", stat.Console, stat.Prometheus("lkd_reports")),
		pauses:    set.New("pauses", "Operator pauses", stat.Prometheus("lkd_pauses")),
		hookTime:  set.New("hook time", "Time to dispatch one stop", stat.Distribution{}, stat.Duration{}),
		stopDelay: set.New("run time", "Time the debuggee ran between stops", stat.Distribution{}, stat.Duration{}),
	}
}

// Status is what the status page shows. It is published by the tracer goroutine after every stop.
type Status struct {
	ID        string            `json:"id"`
	Scenario  string            `json:"scenario"`
	Started   time.Time         `json:"started"`
	State     string            `json:"state"`
	Stop      string            `json:"last_stop,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	Triggers  []trigger.Summary `json:"triggers"`
	Stats     trigger.Stats     `json:"stats"`
}

func New(host debugger.Host, sc *scenario.Scenario, params *scenario.Params, printer *stage.Printer,
	opts Options) (*Tracer, error) {
	if opts.ContextExpr == "" {
		opts.ContextExpr = debugger.DefaultContextExpr
	}
	if opts.Stats == nil {
		opts.Stats = stat.NewSet(prometheus.DefaultRegisterer)
	}
	sess := scenario.NewSession(context.Background(), host, printer, params)
	set, err := sc.Build(sess)
	if err != nil {
		return nil, err
	}
	tr := &Tracer{
		ID:       uuid.NewString(),
		opts:     opts,
		host:     host,
		scenario: sc,
		sess:     sess,
		set:      set,
		bps:      make(map[string]*breakpoint),
		byID:     make(map[debugger.BreakpointID]*breakpoint),
		stats:    newStats(opts.Stats),
	}
	tr.status = Status{
		ID:       tr.ID,
		Scenario: sc.Name,
		Started:  time.Now(),
		State:    "created",
	}
	opts.Stats.New("triggers armed", "Armed triggers", func() int {
		tr.statusMu.Lock()
		defer tr.statusMu.Unlock()
		armed := 0
		for _, t := range tr.status.Triggers {
			if t.State != trigger.Disabled.String() {
				armed++
			}
		}
		return armed
	}, stat.Prometheus("lkd_triggers_armed"))
	tr.publish("created", "", nil)
	return tr, nil
}

func (tr *Tracer) Session() *scenario.Session {
	return tr.sess
}

func (tr *Tracer) Triggers() *trigger.Set[*scenario.Session] {
	return tr.set
}

// Register installs one host breakpoint per distinct trigger location.
func (tr *Tracer) Register(ctx context.Context) error {
	log.Logf(0, "session %v: tracing %v in context %q", tr.ID, tr.scenario.Name, tr.sess.Params.Context)
	for _, location := range tr.set.Locations() {
		loc, err := debugger.ParseLocation(location)
		if err != nil {
			return err
		}
		if loc.IsAddress() {
			insn, err := debugger.DescribeAddress(ctx, tr.host, loc.Addr)
			if err != nil {
				log.Logf(0, "failed to disassemble %v: %v", loc, err)
			} else {
				log.Logf(0, "%v: %v", loc, insn)
			}
		}
		id, err := tr.host.InsertBreakpoint(ctx, loc)
		if err != nil {
			return fmt.Errorf("failed to insert breakpoint at %v: %w", loc, err)
		}
		bp := &breakpoint{
			id:       id,
			location: location,
			enabled:  true,
		}
		tr.bps[location] = bp
		tr.byID[id] = bp
		if cond := tr.condition(location); cond != "" {
			if err := tr.host.ConditionBreakpoint(ctx, id, cond); err != nil {
				return fmt.Errorf("failed to set condition for %v: %w", loc, err)
			}
		}
		log.Logf(1, "breakpoint %v at %v for %v", id, location, triggerNames(tr.set.At(location)))
	}
	return tr.sync(ctx)
}

// condition returns the host condition for a location if all triggers there share the context.
func (tr *Tracer) condition(location string) string {
	if !tr.opts.HostConditions {
		return ""
	}
	triggers := tr.set.At(location)
	for _, t := range triggers[1:] {
		if t.Context() != triggers[0].Context() {
			return ""
		}
	}
	return debugger.ContextCondition(tr.opts.ContextExpr, triggers[0].Context())
}

// sync enables host breakpoints only where some trigger is armed.
func (tr *Tracer) sync(ctx context.Context) error {
	for _, location := range tr.set.Locations() {
		bp := tr.bps[location]
		armed := tr.set.Armed(location)
		if bp.enabled == armed {
			continue
		}
		if err := tr.host.EnableBreakpoint(ctx, bp.id, armed); err != nil {
			return fmt.Errorf("failed to toggle breakpoint %v: %w", bp.id, err)
		}
		bp.enabled = armed
		log.Logf(1, "breakpoint %v at %v enabled=%v", bp.id, location, armed)
	}
	return nil
}

// Run resumes the debuggee and handles stops until it exits, a stage requests termination
// or ctx is cancelled.
func (tr *Tracer) Run(ctx context.Context) error {
	if len(tr.bps) == 0 {
		if err := tr.Register(ctx); err != nil {
			return err
		}
	}
	for {
		tr.publish("running", "", nil)
		resumed := time.Now()
		stop, err := tr.host.Continue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return tr.cancel(ctx.Err())
			}
			tr.publish("failed", "", err)
			return fmt.Errorf("lost the debuggee: %w", err)
		}
		tr.stats.stopDelay.Since(resumed)
		done, err := tr.handle(ctx, stop)
		if err != nil {
			if ctx.Err() != nil {
				return tr.cancel(ctx.Err())
			}
			tr.publish("failed", stop.Frame.String(), err)
			return err
		}
		if done {
			return nil
		}
	}
}

func (tr *Tracer) handle(ctx context.Context, stop *debugger.Stop) (bool, error) {
	switch stop.Reason {
	case debugger.StopExited:
		log.Logf(0, "debuggee exited with code %v", stop.ExitCode)
		tr.publish("exited", "", nil)
		return true, nil
	case debugger.StopBreakpoint:
	default:
		log.Logf(0, "debuggee stopped (%v %v) at %v", stop.Reason, stop.Signal, stop.Frame)
		return false, tr.pause(ctx, fmt.Sprintf("%v %v", stop.Reason, stop.Signal))
	}
	tr.stats.stops.Add(1)
	bp := tr.byID[stop.Breakpoint]
	if bp == nil {
		err := fmt.Errorf("%w: breakpoint %v at %v", trigger.ErrUnknownLocation, stop.Breakpoint, stop.Frame)
		log.Errorf("%v", err)
		tr.publish("paused", stop.Frame.String(), err)
		return false, tr.pause(ctx, err.Error())
	}
	before := tr.set.Stats()
	reports := tr.sess.Printer.Total()
	tr.sess.Ctx = ctx
	start := time.Now()
	pause, err := tr.set.OnStopEvent(bp.location, debugger.NewCommSnapshot(ctx, tr.host, tr.opts.ContextExpr), tr.sess)
	tr.stats.hookTime.Since(start)
	after := tr.set.Stats()
	tr.stats.foreign.Add(after.Mismatched - before.Mismatched)
	tr.stats.fired.Add(after.Fired - before.Fired)
	tr.stats.reports.Add(tr.sess.Printer.Total() - reports)
	if err != nil {
		tr.stats.errors.Add(1)
		log.Errorf("stop at %v: %v", bp.location, err)
		// Triggers that ran before the failing one may have been toggled.
		if syncErr := tr.sync(ctx); syncErr != nil {
			return false, fmt.Errorf("%w (hook error: %w)", syncErr, err)
		}
		tr.publish("paused", bp.location, err)
		if !tr.opts.PauseOnError {
			return false, err
		}
		return false, tr.pause(ctx, err.Error())
	}
	if tr.sess.TerminationRequested() {
		log.Logf(0, "final stage reached, ending the debugging session")
		tr.publish("terminated", bp.location, nil)
		return true, tr.host.Terminate(ctx)
	}
	if err := tr.sync(ctx); err != nil {
		return false, err
	}
	tr.publish("stopped", bp.location, nil)
	if pause {
		return false, tr.pause(ctx, "stage report at "+bp.location)
	}
	return false, nil
}

func (tr *Tracer) pause(ctx context.Context, reason string) error {
	if tr.opts.Pauser == nil {
		return nil
	}
	tr.stats.pauses.Add(1)
	tr.publish("paused", reason, nil)
	return tr.opts.Pauser.Pause(ctx, reason)
}

// cancel stops the running debuggee and leaves the session.
func (tr *Tracer) cancel(reason error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tr.host.Interrupt(ctx); err != nil {
		log.Logf(0, "failed to interrupt the debuggee: %v", err)
	}
	tr.publish("cancelled", "", nil)
	if err := tr.host.Terminate(ctx); err != nil && !errors.Is(err, debugger.ErrTerminated) {
		log.Logf(0, "failed to terminate the session: %v", err)
	}
	return reason
}

func (tr *Tracer) publish(state, stop string, err error) {
	tr.statusMu.Lock()
	defer tr.statusMu.Unlock()
	tr.status.State = state
	if stop != "" {
		tr.status.Stop = stop
	}
	if err != nil {
		tr.status.LastError = err.Error()
	}
	tr.status.Triggers = tr.set.Summaries()
	tr.status.Stats = tr.set.Stats()
}

func (tr *Tracer) Status() Status {
	tr.statusMu.Lock()
	defer tr.statusMu.Unlock()
	st := tr.status
	st.Triggers = append([]trigger.Summary{}, st.Triggers...)
	return st
}

func triggerNames(triggers []*trigger.Trigger[*scenario.Session]) []string {
	var names []string
	for _, t := range triggers {
		names = append(names, t.Name())
	}
	return names
}
