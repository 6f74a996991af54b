// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stat provides prometheus-style metrics (Val type) for instrumenting the tracer,
// and a registry for such metrics (Set type).
//
// Simple uses of metrics:
//
//	set := stat.NewSet(prometheus.DefaultRegisterer)
//	stops := set.New("stops", "Stop events reported by the host", stat.Rate{})
//	stops.Add(1)
//
//	set.New("armed triggers", "Triggers currently armed", func() int { return armed() })
//
// The status page uses Collect to obtain values of all registered metrics.
package stat

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

type UI struct {
	Name  string
	Desc  string
	Level Level
	Value string
	V     int
}

type Set struct {
	mu    sync.Mutex
	reg   prometheus.Registerer
	vals  map[string]*Val
	start time.Time
}

// NewSet creates a registry that exports Prometheus metrics to reg (may be nil).
func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		reg:   reg,
		vals:  make(map[string]*Val),
		start: time.Now(),
	}
}

func (s *Set) Collect(level Level) []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Since(s.start)
	var res []UI
	for _, v := range s.vals {
		if v.level < level {
			continue
		}
		val := v.Val()
		text := v.fmt(val, period)
		if v.hist {
			text += fmt.Sprintf(" (p90 %v)", v.fmt(v.Quantile(0.9), period))
		}
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Level: v.level,
			Value: text,
			V:     val,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Level != res[j].Level {
			return res[i].Level > res[j].Level
		}
		return res[i].Name < res[j].Name
	})
	return res
}

// Additional options for Val metrics.

// Level controls if the metric should be printed to console in periodic logs,
// or showed on the status page only.
type Level int

const (
	All Level = iota
	Console
)

// Prometheus exports the metric to Prometheus under the given name.
type Prometheus string

// Rate says to show metric rate per unit of time rather then total value.
type Rate struct{}

// Distribution says to collect histogram of individual samples and show the mean.
type Distribution struct{}

// Duration says that samples are time.Duration values in microseconds.
type Duration struct{}

// Addittionally a custom 'func() int' can be passed to read the metric value from the function.
// and 'func(int, time.Duration) string' can be passed for custom formatting of the metric value.

func (s *Set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name: name,
		desc: desc,
		fmt:  func(v int, period time.Duration) string { return strconv.Itoa(v) },
	}
	var promName string
	for _, o := range opts {
		switch opt := o.(type) {
		case Level:
			v.level = opt
		case Rate:
			v.fmt = formatRate
		case Distribution:
			v.hist = true
		case Duration:
			v.fmt = formatMicros
		case func() int:
			v.ext = opt
		case func(int, time.Duration) string:
			v.fmt = opt
		case Prometheus:
			promName = string(opt)
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	if promName != "" && s.reg != nil {
		// Registration fails for duplicate names (e.g. a second tracer in the same process),
		// the first registered metric keeps being exported in that case.
		s.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: promName,
			Help: desc,
		},
			func() float64 { return float64(v.Val()) },
		))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[name] = v
	return v
}

type Val struct {
	name    string
	desc    string
	level   Level
	val     atomic.Uint64
	ext     func() int
	fmt     func(int, time.Duration) string
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

const histogramBuckets = 255

func (v *Val) Add(val int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

// Since adds the time elapsed since start in microseconds (for Distribution+Duration metrics).
func (v *Val) Since(start time.Time) {
	v.Add(int(time.Since(start) / time.Microsecond))
}

func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile returns the q-quantile of a Distribution metric.
func (v *Val) Quantile(q float64) int {
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return int(v.histVal.Quantile(q))
}

func formatRate(v int, period time.Duration) string {
	secs := max(int(period.Seconds()), 1)
	if x := v / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/sec)", v, x)
	}
	if x := v * 60 / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/min)", v, x)
	}
	x := v * 60 * 60 / secs
	return fmt.Sprintf("%v (%v/hour)", v, x)
}

func formatMicros(v int, period time.Duration) string {
	return (time.Duration(v) * time.Microsecond).String()
}
