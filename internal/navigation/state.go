// Package navigation holds the visible time window, the path filter and the
// cursor, and applies navigation commands to them.
package navigation

import (
	"errors"
	"fmt"
	"math"

	"github.com/sile/magpies/internal/aggregate"
	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
)

var (
	ErrInvalidWidth   = errors.New("interval width must be a positive number of seconds")
	ErrInvalidVisible = errors.New("visible interval count must be at least 1")
)

// Source is the read side of the store navigation needs.
type Source interface {
	Bounds() (earliest, latest float64, err error)
	Paths(f *series.Filter) []record.MetricPath
}

type Config struct {
	Width      float64
	Visible    int
	Filter     string
	FilterMode series.FilterMode
}

// Window is the visible time range [Start, End).
type Window struct {
	Start   float64
	End     float64
	Width   float64
	Visible int
}

// State is mutated only through Apply and Sync.
type State struct {
	width   float64
	visible int

	start       float64
	initialized bool
	follow      bool

	mode   series.FilterMode
	filter *series.Filter

	cursor    record.MetricPath
	hasCursor bool
}

func New(cfg Config) (*State, error) {
	if !(cfg.Width > 0) || math.IsInf(cfg.Width, 0) {
		return nil, ErrInvalidWidth
	}
	if cfg.Visible < 1 {
		return nil, ErrInvalidVisible
	}
	f, err := series.NewFilter(cfg.Filter, cfg.FilterMode)
	if err != nil {
		return nil, err
	}
	return &State{
		width:   cfg.Width,
		visible: cfg.Visible,
		mode:    cfg.FilterMode,
		filter:  f,
		follow:  true,
	}, nil
}

func (s *State) Window() Window {
	return Window{
		Start:   s.start,
		End:     s.start + s.width*float64(s.visible),
		Width:   s.width,
		Visible: s.visible,
	}
}

// Intervals lists the visible intervals, oldest first.
func (s *State) Intervals() []aggregate.Interval {
	out := make([]aggregate.Interval, s.visible)
	for i := range out {
		out[i] = aggregate.At(s.start, i, s.width)
	}
	return out
}

// Last is the rightmost visible interval.
func (s *State) Last() aggregate.Interval {
	return aggregate.At(s.start, s.visible-1, s.width)
}

func (s *State) Filter() *series.Filter { return s.filter }

func (s *State) Cursor() (record.MetricPath, bool) { return s.cursor, s.hasCursor }

// Following reports whether the window tracks the newest data.
func (s *State) Following() bool { return s.follow }

// Initialized reports whether the window has been placed over data.
func (s *State) Initialized() bool { return s.initialized }

func (s *State) Width() float64 { return s.width }
func (s *State) Visible() int   { return s.visible }

func (s *State) alignDown(ts float64) float64 {
	return math.Floor(ts/s.width) * s.width
}

// limits returns the smallest and largest allowed window starts. At the
// largest start the last visible interval contains the latest timestamp.
func (s *State) limits(src Source) (lo, hi float64, ok bool) {
	earliest, latest, err := src.Bounds()
	if err != nil {
		return 0, 0, false
	}
	hi = s.alignDown(latest) - float64(s.visible-1)*s.width
	lo = min(s.alignDown(earliest), hi)
	return lo, hi, true
}

func (s *State) place(start, lo, hi float64) {
	s.start = min(max(start, lo), hi)
	s.follow = s.start >= hi
}

// Sync re-applies the window and cursor rules after ingestion. A window that
// was never placed, or that follows new data, moves to the latest interval.
func (s *State) Sync(src Source) {
	if lo, hi, ok := s.limits(src); ok {
		if !s.initialized || s.follow {
			s.start, s.follow = hi, true
		} else {
			s.place(s.start, lo, hi)
		}
		s.initialized = true
	}
	if !s.hasCursor {
		s.homeCursor(src)
	}
}

// Apply executes cmd. Only SetFilter and Resize can fail, and a failed
// command leaves the state unchanged.
func (s *State) Apply(cmd Command, src Source) error {
	switch c := cmd.(type) {
	case Next:
		s.shift(src, s.width)
	case Prev:
		s.shift(src, -s.width)
	case Start:
		if lo, hi, ok := s.limits(src); ok {
			s.place(lo, lo, hi)
		}
	case End:
		if _, hi, ok := s.limits(src); ok {
			s.start = hi
		}
		s.follow = true
	case MoveCursor:
		s.moveCursor(src, c.Delta)
	case SetFilter:
		f, err := series.NewFilter(c.Pattern, s.mode)
		if err != nil {
			return err
		}
		s.filter = f
		if !s.hasCursor || !f.MatchPath(s.cursor) {
			s.homeCursor(src)
		}
	case Resize:
		if c.Visible < 1 {
			return fmt.Errorf("resize to %d: %w", c.Visible, ErrInvalidVisible)
		}
		end := s.start + float64(s.visible)*s.width
		s.visible = c.Visible
		if lo, hi, ok := s.limits(src); ok {
			if s.follow {
				s.start = hi
			} else {
				s.place(end-float64(s.visible)*s.width, lo, hi)
			}
		}
	default:
		return fmt.Errorf("unsupported navigation command %T", cmd)
	}
	return nil
}

func (s *State) shift(src Source, by float64) {
	lo, hi, ok := s.limits(src)
	if !ok {
		return
	}
	s.place(s.start+by, lo, hi)
}

func (s *State) homeCursor(src Source) {
	paths := src.Paths(s.filter)
	if len(paths) == 0 {
		s.cursor, s.hasCursor = record.MetricPath{}, false
		return
	}
	s.cursor, s.hasCursor = paths[0], true
}

// moveCursor clamps at both ends of the matching paths.
func (s *State) moveCursor(src Source, delta int) {
	paths := src.Paths(s.filter)
	if len(paths) == 0 {
		s.cursor, s.hasCursor = record.MetricPath{}, false
		return
	}
	idx := -1
	if s.hasCursor {
		for i, p := range paths {
			if p == s.cursor {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		s.cursor, s.hasCursor = paths[0], true
		return
	}
	idx = min(max(idx+delta, 0), len(paths)-1)
	s.cursor, s.hasCursor = paths[idx], true
}
