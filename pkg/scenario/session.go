// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/kaddr"
	"github.com/google/lkd/pkg/kstruct"
	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/stage"
	"github.com/google/lkd/pkg/trigger"
)

var ErrMissingReference = errors.New("reference is not captured yet")

// Session is the state shared by all stage hooks of one tracing run.
// Hooks run one at a time on the driver goroutine, so nothing here is locked.
type Session struct {
	// Ctx is the context of the current stop.
	Ctx      context.Context
	Host     debugger.Host
	Printer  *stage.Printer
	Params   *Params
	Triggers *trigger.Set[*Session]

	// References captured by earlier stages.
	Task    *kstruct.Task
	Pipe    *kstruct.Pipe
	Buf     *kstruct.PipeBuffer
	File    *kstruct.File
	Mapping *kstruct.AddressSpace
	Page    *kstruct.Page

	terminate bool
}

func NewSession(ctx context.Context, host debugger.Host, printer *stage.Printer, params *Params) *Session {
	return &Session{
		Ctx:     ctx,
		Host:    host,
		Printer: printer,
		Params:  params,
	}
}

// RequestTermination asks the driver to end the debugging session after the current stop.
func (s *Session) RequestTermination() {
	s.terminate = true
}

func (s *Session) TerminationRequested() bool {
	return s.terminate
}

// Table reads the page descriptor table parameters from the kernel.
// It is evaluated anew for every use: the values belong to the current stop.
func (s *Session) Table() (*kaddr.Table, error) {
	return kaddr.Load(s.Ctx, debugger.Evaluator{Host: s.Host}, s.Params.PageShift)
}

func (s *Session) NewPage(addr uint64) (*kstruct.Page, error) {
	table, err := s.Table()
	if err != nil {
		return nil, err
	}
	return kstruct.NewPage(s.Host, table, addr), nil
}

// Report prints the stage report with sections of the given views.
// It returns whether the operator asked to pause after this stage.
func (s *Session) Report(trigger, id, title string, views ...kstruct.Sectioner) (bool, error) {
	secs, err := kstruct.Sections(s.Ctx, views...)
	if err != nil {
		return true, fmt.Errorf("stage %v: %w", id, err)
	}
	r := stage.NewReport(trigger, fmt.Sprintf("Stage %v: %v", id, title))
	r.Add(secs...)
	if err := s.Printer.Print(r); err != nil {
		return true, err
	}
	log.Logf(1, "reported stage %v at %v", id, trigger)
	if s.Params.Terminate && id == s.Params.FinalStage {
		s.RequestTermination()
	}
	return slices.Contains(s.Params.PauseAfter, id), nil
}

// needRef fails with ErrMissingReference if a slot is still empty.
func needRef(present bool, what, capturedBy string) error {
	if !present {
		return fmt.Errorf("%w: %v (captured by %v)", ErrMissingReference, what, capturedBy)
	}
	return nil
}
