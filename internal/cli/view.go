package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sile/magpies/internal/engine"
	"github.com/sile/magpies/internal/ingest"
	"github.com/sile/magpies/internal/metrics"
	"github.com/sile/magpies/internal/navigation"
	"github.com/sile/magpies/internal/series"
	"github.com/sile/magpies/internal/terminal"
	"github.com/sile/magpies/internal/ui"
	"github.com/sile/magpies/internal/view"
)

const (
	// columns reserved left of the chart for its y-axis labels
	chartLabelColumns = 12
	fallbackWidth     = 80
	fallbackHeight    = 24
)

type viewOptions struct {
	follow      bool
	interval    time.Duration
	visible     int
	filter      string
	regex       bool
	print       bool
	format      string
	metricsAddr string
}

func newViewCmd(a *app) *cobra.Command {
	var o viewOptions
	cmd := &cobra.Command{
		Use:     "view FILE|-",
		Short:   "Browse recorded metrics interval by interval",
		GroupID: "core",
		Example: `  magpies poll targets.jsonl > records.jsonl &
  magpies view --follow records.jsonl
  magpies view --interval 10s --filter memory records.jsonl
  magpies view --print --format json --regex --filter '^mem' records.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if !cmd.Flags().Changed("follow") {
				o.follow = cfg.View.Follow
			}
			if !cmd.Flags().Changed("interval") {
				o.interval = time.Duration(cfg.IntervalSeconds() * float64(time.Second))
			}
			if !cmd.Flags().Changed("visible") {
				o.visible = cfg.View.Visible
			}
			if !cmd.Flags().Changed("filter") {
				o.filter = cfg.View.Filter
			}
			if !cmd.Flags().Changed("metrics-addr") {
				o.metricsAddr = cfg.Metrics.Address
			}
			mode := cfg.ViewFilterMode()
			if cmd.Flags().Changed("regex") {
				mode = series.FilterSubstring
				if o.regex {
					mode = series.FilterRegex
				}
			}
			return a.runView(cmd.Context(), args[0], o, mode)
		},
	}
	cmd.Flags().BoolVarP(&o.follow, "follow", "f", false, "keep reading as the file grows")
	cmd.Flags().DurationVarP(&o.interval, "interval", "i", time.Second, "aggregation interval")
	cmd.Flags().IntVar(&o.visible, "visible", 0, "number of visible intervals (0 = fit the terminal)")
	cmd.Flags().StringVar(&o.filter, "filter", "", "initial metric filter")
	cmd.Flags().BoolVar(&o.regex, "regex", false, "treat --filter as a regular expression")
	cmd.Flags().BoolVar(&o.print, "print", false, "print the newest window once instead of starting the viewer")
	cmd.Flags().StringVar(&o.format, "format", "text", "output format for --print: text|json")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) runView(ctx context.Context, path string, o viewOptions, mode series.FilterMode) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	if o.visible < 0 {
		return fmt.Errorf("--visible must be >= 0")
	}
	format := strings.ToLower(strings.TrimSpace(o.format))
	if o.print {
		if o.follow {
			return fmt.Errorf("--print cannot be combined with --follow")
		}
		if format != "text" && format != "json" {
			return fmt.Errorf("unsupported --format %q (supported: text, json)", o.format)
		}
	}
	if path == ingest.Stdin && o.follow {
		return fmt.Errorf("--follow needs a file, not stdin")
	}

	cfg := a.config()
	log, err := a.newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := metrics.New()
	if o.metricsAddr != "" {
		go func() {
			if err := rec.Serve(ctx, o.metricsAddr); err != nil {
				log.Warn("metrics endpoint stopped", zap.String("addr", o.metricsAddr), zap.Error(err))
			}
		}()
	}

	autoVisible := o.visible == 0
	visible := o.visible
	if autoVisible {
		width, _ := terminal.Size(os.Stdout, fallbackWidth, fallbackHeight)
		visible = terminal.VisibleIntervals(width, 1, chartLabelColumns)
	}

	eng, err := engine.New(engine.Options{
		Navigation: navigation.Config{
			Width:      o.interval.Seconds(),
			Visible:    visible,
			Filter:     o.filter,
			FilterMode: mode,
		},
		View:    view.Options{Decimals: cfg.View.Decimals, MaxUnionItems: cfg.TUI.MaxUnionItems},
		Logger:  log,
		Metrics: rec,
	})
	if err != nil {
		return err
	}

	reader, err := ingest.Open(ctx, ingest.Options{Path: path, Follow: o.follow, Logger: log}, a.stdin)
	if err != nil {
		return err
	}
	log.Info("viewer started", zap.String("source", path), zap.Bool("follow", o.follow),
		zap.Duration("interval", o.interval), zap.Int("visible", visible))

	if o.print {
		for line := range reader.Lines() {
			if err := eng.IngestLine(line); err != nil {
				fmt.Fprintf(a.stderr, "warning: %v\n", err)
			}
		}
		if err := reader.Err(); err != nil {
			return err
		}
		if format == "json" {
			return writeViewJSON(a.stdout, eng)
		}
		return writeViewText(a.stdout, eng)
	}

	if !terminal.IsTerminal(os.Stdout) {
		return fmt.Errorf("stdout is not a terminal; use --print for non-interactive output")
	}
	err = ui.Run(ctx, ui.Options{
		Engine:          eng,
		Lines:           reader.Lines(),
		InputErr:        reader.Err,
		Source:          path,
		AutoVisible:     autoVisible,
		Colors:          cfg.TUI.Colors,
		AltScreen:       cfg.TUI.AltScreen,
		RefreshInterval: cfg.RefreshIntervalDuration(),
		Decimals:        cfg.View.Decimals,
		Logger:          log,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type printedView struct {
	Status  engine.Status     `json:"status"`
	Cursor  string            `json:"cursor,omitempty"`
	Metrics []printedMetric   `json:"metrics"`
	Targets []printedTarget   `json:"targets,omitempty"`
	Chart   []printedInterval `json:"chart,omitempty"`
}

type printedMetric struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Delta string `json:"delta"`
}

type printedTarget struct {
	Target string `json:"target"`
	Value  string `json:"value"`
	Delta  string `json:"delta"`
}

type printedInterval struct {
	Start float64  `json:"start"`
	Delta *float64 `json:"delta"`
}

func writeViewJSON(w io.Writer, eng *engine.Engine) error {
	v := eng.CurrentView()
	out := printedView{Status: eng.Status(), Cursor: v.CursorPath, Metrics: []printedMetric{}}
	for _, m := range v.Metrics {
		out.Metrics = append(out.Metrics, printedMetric{Path: m.Name, Kind: m.Kind.String(), Value: m.Value, Delta: m.Delta})
	}
	for _, t := range v.Targets {
		out.Targets = append(out.Targets, printedTarget{Target: t.Target, Value: t.Value, Delta: t.Delta})
	}
	for _, p := range v.Chart {
		iv := printedInterval{Start: p.Start}
		if p.Present {
			d := p.Delta
			iv.Delta = &d
		}
		out.Chart = append(out.Chart, iv)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeViewText(w io.Writer, eng *engine.Engine) error {
	v := eng.CurrentView()
	st := eng.Status()
	if v.Empty {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}
	fmt.Fprintf(w, "window   %s → %s\n", view.FormatTimestamp(v.Window.Start), view.FormatTimestamp(v.Window.End))
	fmt.Fprintf(w, "data     %s → %s\n", view.FormatTimestamp(st.Earliest), view.FormatTimestamp(st.Latest))
	fmt.Fprintf(w, "targets  %s  metrics %s  samples %s  rejected %s\n",
		view.FormatCount(st.Targets), view.FormatCount(st.Paths), view.FormatCount(st.Samples), view.FormatCount(st.Rejected))
	if v.Filter != "" {
		fmt.Fprintf(w, "filter   %s\n", v.Filter)
	}
	fmt.Fprintln(w)

	nameW := len("metric")
	for _, m := range v.Metrics {
		nameW = max(nameW, len(m.Name))
	}
	fmt.Fprintf(w, "%-*s  %16s  %14s\n", nameW, "metric", "value", "Δ/s")
	for _, m := range v.Metrics {
		fmt.Fprintf(w, "%-*s  %16s  %14s\n", nameW, m.Name, m.Value, m.Delta)
	}
	if v.CursorPath == "" {
		return nil
	}

	fmt.Fprintf(w, "\n%s\n", v.CursorPath)
	targetW := len("target")
	for _, t := range v.Targets {
		targetW = max(targetW, len(t.Target))
	}
	fmt.Fprintf(w, "%-*s  %16s  %14s\n", targetW, "target", "value", "Δ/s")
	for _, t := range v.Targets {
		fmt.Fprintf(w, "%-*s  %16s  %14s\n", targetW, t.Target, t.Value, t.Delta)
	}
	return nil
}
