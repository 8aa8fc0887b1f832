// Package engine ties the store, aggregator, navigation state and view
// builder together behind the API the renderers use.
//
// An Engine is single-threaded: every method must be called from the
// goroutine that owns it. Lines read elsewhere are handed over through
// ingest.Lines.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sile/magpies/internal/aggregate"
	"github.com/sile/magpies/internal/metrics"
	"github.com/sile/magpies/internal/navigation"
	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
	"github.com/sile/magpies/internal/view"
)

type Options struct {
	Navigation navigation.Config
	View       view.Options
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
}

// Status summarises the engine for status bars and --print output.
type Status struct {
	Targets     int     `json:"targets"`
	Paths       int     `json:"paths"`
	Samples     int     `json:"samples"`
	Rejected    int     `json:"rejected"`
	WindowStart float64 `json:"window_start"`
	WindowEnd   float64 `json:"window_end"`
	Earliest    float64 `json:"earliest"`
	Latest      float64 `json:"latest"`
	HasData     bool    `json:"has_data"`
	Following   bool    `json:"following"`
	Filter      string  `json:"filter"`
}

type Engine struct {
	store *series.Store
	agg   *aggregate.Aggregator
	nav   *navigation.State
	opts  view.Options
	log   *zap.Logger
	rec   *metrics.Recorder

	lines    int
	rejected int
}

func New(opts Options) (*Engine, error) {
	nav, err := navigation.New(opts.Navigation)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New()
	}
	store := series.NewStore()
	return &Engine{
		store: store,
		agg:   aggregate.New(store),
		nav:   nav,
		opts:  opts.View,
		log:   log,
		rec:   rec,
	}, nil
}

// IngestLine parses and ingests one input line. A rejected line returns a
// *record.ParseError and changes nothing. A line with rejected leaves is
// ingested without them and still returns a *record.ParseError.
func (e *Engine) IngestLine(text string) error {
	e.lines++
	sample, err := record.Parse([]byte(text))
	if err != nil {
		e.rejected++
		e.rec.LinesTotal.WithLabelValues("rejected").Inc()
		err = e.withLine(err)
		e.log.Warn("rejected input line", zap.Int("line", e.lines), zap.Error(err))
		return err
	}

	e.store.Ingest(sample)
	e.nav.Sync(e.store)
	e.rec.SamplesTotal.Inc()
	e.rec.KnownTargets.Set(float64(e.store.NumTargets()))
	e.rec.KnownPaths.Set(float64(e.store.NumPaths()))

	if leafErr := sample.LeafError(); leafErr != nil {
		e.rec.LinesTotal.WithLabelValues("partial").Inc()
		e.rec.RejectedLeavesTotal.Add(float64(len(sample.Rejected)))
		leafErr = e.withLine(leafErr)
		e.log.Warn("rejected metric leaves", zap.Int("line", e.lines), zap.String("target", sample.Target), zap.Error(leafErr))
		return leafErr
	}
	e.rec.LinesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (e *Engine) withLine(err error) error {
	var pe *record.ParseError
	if errors.As(err, &pe) {
		pe.Line = e.lines
	}
	return err
}

// Navigate applies cmd. A rejected command leaves the state unchanged.
func (e *Engine) Navigate(cmd navigation.Command) error {
	if err := e.nav.Apply(cmd, e.store); err != nil {
		e.rec.NavigationTotal.WithLabelValues(commandName(cmd), "rejected").Inc()
		e.log.Debug("navigation command rejected", zap.Stringer("command", cmd), zap.Error(err))
		return err
	}
	e.rec.NavigationTotal.WithLabelValues(commandName(cmd), "ok").Inc()
	return nil
}

func commandName(cmd navigation.Command) string {
	switch cmd.(type) {
	case navigation.MoveCursor:
		return "cursor"
	case navigation.SetFilter:
		return "filter"
	case navigation.Resize:
		return "resize"
	default:
		return cmd.String()
	}
}

func (e *Engine) CurrentView() view.Model {
	start := time.Now()
	m := view.Build(e.store, e.agg, e.nav, e.opts)
	e.rec.ViewBuildDurationSeconds.Observe(time.Since(start).Seconds())
	return m
}

func (e *Engine) Status() Status {
	w := e.nav.Window()
	st := Status{
		Targets:     e.store.NumTargets(),
		Paths:       e.store.NumPaths(),
		Samples:     e.store.NumSamples(),
		Rejected:    e.rejected,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Following:   e.nav.Following(),
		Filter:      e.nav.Filter().Pattern(),
	}
	if earliest, latest, err := e.store.Bounds(); err == nil {
		st.Earliest, st.Latest, st.HasData = earliest, latest, true
	}
	return st
}

// Visible is the current number of visible intervals.
func (e *Engine) Visible() int { return e.nav.Visible() }
