// Package poller runs target commands on an interval and emits one record
// line per successful run.
package poller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sile/magpies/internal/metrics"
	"github.com/sile/magpies/internal/record"
)

var (
	ErrNoTargets    = errors.New("no poll targets")
	ErrNotAnObject  = errors.New("command output is not a JSON object")
	ErrInvalidDelay = errors.New("poll interval must be positive")
)

type Options struct {
	Interval time.Duration
	// Timeout bounds one command run; zero means no limit.
	Timeout time.Duration
	// Count stops each target after this many rounds; zero polls forever.
	Count   int
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	// Now stamps records; defaults to time.Now.
	Now func() time.Time
}

type Poller struct {
	targets []record.Target
	opts    Options
	log     *zap.Logger
}

func New(targets []record.Target, opts Options) (*Poller, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if opts.Interval <= 0 {
		return nil, ErrInvalidDelay
	}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{targets: targets, opts: opts, log: opts.Logger}, nil
}

// Run polls every target until ctx is done or every target finished its
// rounds. Records are written to w by a single goroutine.
func (p *Poller) Run(ctx context.Context, w io.Writer) error {
	records := make(chan record.Record, len(p.targets))

	var writeErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for rec := range records {
			if writeErr != nil {
				continue
			}
			if err := enc.Encode(rec); err != nil {
				writeErr = fmt.Errorf("write record: %w", err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.targets {
		g.Go(func() error {
			return p.pollTarget(gctx, t, records)
		})
	}
	err := g.Wait()
	close(records)
	wg.Wait()

	if writeErr != nil {
		return writeErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Poller) pollTarget(ctx context.Context, t record.Target, out chan<- record.Record) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		p.pollOnce(ctx, t, out)
		if p.opts.Count > 0 && round >= p.opts.Count {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, t record.Target, out chan<- record.Record) {
	ts := p.opts.Now()
	start := time.Now()
	metricsJSON, err := Capture(ctx, t, p.opts.Timeout)
	elapsed := time.Since(start)
	p.opts.Metrics.PollDurationSeconds.WithLabelValues(t.Name).Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.opts.Metrics.PollRunsTotal.WithLabelValues(t.Name, "error").Inc()
		p.log.Warn("poll failed", zap.String("target", t.Name), zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	p.opts.Metrics.PollRunsTotal.WithLabelValues(t.Name, "ok").Inc()

	rec := record.Record{
		Target:    t.Name,
		Timestamp: float64(ts.Unix()) + float64(ts.Nanosecond())/1e9,
		Metrics:   metricsJSON,
	}
	select {
	case out <- rec:
	case <-ctx.Done():
	}
}

// Capture runs the target command once and returns its stdout as a compact
// JSON object.
func Capture(ctx context.Context, t record.Target, timeout time.Duration) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, t.CommandPath, t.CommandArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %s", t.CommandPath, timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", t.CommandPath, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", t.CommandPath, err)
	}

	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrNotAnObject
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	return buf.Bytes(), nil
}

// ReadTargets parses one target descriptor per non-blank line.
func ReadTargets(r io.Reader) ([]record.Target, error) {
	var out []record.Target
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t, err := record.ParseTarget([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("targets line %d: %w", n, err)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}
