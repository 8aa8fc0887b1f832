package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sile/magpies/internal/metrics"
	"github.com/sile/magpies/internal/navigation"
	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
)

func newEngine(t *testing.T, width float64, visible int) (*Engine, *metrics.Recorder) {
	t.Helper()
	rec := metrics.New()
	e, err := New(Options{Navigation: navigation.Config{Width: width, Visible: visible}, Metrics: rec})
	require.NoError(t, err)
	return e, rec
}

func line(target string, ts float64, used, peak int) string {
	return fmt.Sprintf(`{"target":%q,"timestamp":%g,"metrics":{"memory":{"used_memory":%d,"peak_memory":%d}}}`, target, ts, used, peak)
}

func TestEndToEndLocalRemote(t *testing.T) {
	e, rec := newEngine(t, 2, 5)
	input := []string{
		line("local", 0, 100, 500),
		line("remote", 0.5, 200, 900),
		line("local", 2, 110, 500),
		line("remote", 2.5, 220, 900),
		line("local", 4, 120, 500),
		line("remote", 4.5, 240, 900),
	}
	for _, l := range input {
		require.NoError(t, e.IngestLine(l))
	}

	require.NoError(t, e.Navigate(navigation.SetFilter{Pattern: "used_memory"}))
	require.NoError(t, e.Navigate(navigation.MoveCursor{Delta: 1}))

	v := e.CurrentView()
	require.False(t, v.Empty)
	require.Len(t, v.Metrics, 1)
	assert.Equal(t, "memory.used_memory", v.Metrics[0].Name)
	assert.Equal(t, "360", v.Metrics[0].Value)
	assert.Equal(t, "15", v.Metrics[0].Delta)
	assert.Equal(t, 0, v.Cursor)
	assert.Equal(t, "memory.used_memory", v.CursorPath)

	require.Len(t, v.Targets, 2)
	assert.Equal(t, "local", v.Targets[0].Target)
	assert.Equal(t, "120", v.Targets[0].Value)
	assert.Equal(t, "5", v.Targets[0].Delta)
	assert.Equal(t, "remote", v.Targets[1].Target)
	assert.Equal(t, "240", v.Targets[1].Value)
	assert.Equal(t, "10", v.Targets[1].Delta)

	require.Len(t, v.Chart, 5)
	want := []struct {
		start   float64
		present bool
		delta   float64
	}{
		{-4, false, 0},
		{-2, false, 0},
		{0, false, 0},
		{2, true, 15},
		{4, true, 15},
	}
	for i, w := range want {
		assert.Equal(t, w.start, v.Chart[i].Start, "interval %d", i)
		assert.Equal(t, w.present, v.Chart[i].Present, "interval %d", i)
		if w.present {
			assert.Equal(t, w.delta, v.Chart[i].Delta, "interval %d", i)
		}
	}

	st := e.Status()
	assert.Equal(t, 2, st.Targets)
	assert.Equal(t, 2, st.Paths)
	assert.Equal(t, 6, st.Samples)
	assert.Equal(t, 0.0, st.Earliest)
	assert.Equal(t, 4.5, st.Latest)
	assert.Equal(t, -4.0, st.WindowStart)
	assert.Equal(t, 6.0, st.WindowEnd)
	assert.True(t, st.Following)
	assert.Equal(t, "used_memory", st.Filter)

	assert.Equal(t, 6.0, testutil.ToFloat64(rec.LinesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.KnownTargets))

	require.NoError(t, e.Navigate(navigation.Resize{Visible: 2}))
	assert.Equal(t, 2.0, e.Status().WindowStart)
	require.NoError(t, e.Navigate(navigation.Prev{}))
	assert.Equal(t, 0.0, e.Status().WindowStart)
	v = e.CurrentView()
	assert.Equal(t, "330", v.Metrics[0].Value)
	assert.Equal(t, "15", v.Metrics[0].Delta)
}

func TestEndToEndTwoSamplesPerBucket(t *testing.T) {
	cases := []struct {
		name         string
		remoteOffset float64
	}{
		{name: "aligned cadence", remoteOffset: 0},
		{name: "remote half a second late", remoteOffset: 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newEngine(t, 2, 5)
			for i := 0; i < 10; i++ {
				require.NoError(t, e.IngestLine(line("local", float64(i), 100+10*i, 500)))
				require.NoError(t, e.IngestLine(line("remote", float64(i)+tc.remoteOffset, 200+20*i, 900)))
			}
			require.NoError(t, e.Navigate(navigation.SetFilter{Pattern: "used_memory"}))
			require.NoError(t, e.Navigate(navigation.MoveCursor{Delta: 1}))

			v := e.CurrentView()
			assert.Equal(t, 0.0, v.Window.Start)
			require.Len(t, v.Metrics, 1)
			assert.Equal(t, "555", v.Metrics[0].Value)
			assert.Equal(t, "30", v.Metrics[0].Delta)

			require.Len(t, v.Targets, 2)
			assert.Equal(t, "185", v.Targets[0].Value)
			assert.Equal(t, "10", v.Targets[0].Delta)
			assert.Equal(t, "370", v.Targets[1].Value)
			assert.Equal(t, "20", v.Targets[1].Delta)

			require.Len(t, v.Chart, 5)
			assert.False(t, v.Chart[0].Present)
			for i := 1; i < 5; i++ {
				if !v.Chart[i].Present || v.Chart[i].Delta != 30 {
					t.Fatalf("interval %d: present=%v delta=%v, want 30", i, v.Chart[i].Present, v.Chart[i].Delta)
				}
			}
		})
	}
}

func TestIngestLineRejectsBadInput(t *testing.T) {
	e, rec := newEngine(t, 1, 3)
	require.NoError(t, e.IngestLine(line("a", 1, 1, 1)))

	err := e.IngestLine(`{"target":"a"}`)
	require.Error(t, err)
	var pe *record.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)

	err = e.IngestLine(`not json`)
	assert.True(t, errors.Is(err, record.ErrParse))

	st := e.Status()
	assert.Equal(t, 1, st.Samples)
	assert.Equal(t, 2, st.Rejected)
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.LinesTotal.WithLabelValues("rejected")))
}

func TestIngestLineKeepsValidLeaves(t *testing.T) {
	e, rec := newEngine(t, 1, 3)
	err := e.IngestLine(`{"target":"a","timestamp":1,"metrics":{"bad":1e999,"good":7}}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, record.ErrParse))

	v := e.CurrentView()
	require.Len(t, v.Metrics, 1)
	assert.Equal(t, "good", v.Metrics[0].Name)
	assert.Equal(t, "7", v.Metrics[0].Value)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RejectedLeavesTotal))
}

func TestEmptyEngine(t *testing.T) {
	e, _ := newEngine(t, 2, 4)
	require.NoError(t, e.Navigate(navigation.Next{}))
	require.NoError(t, e.Navigate(navigation.End{}))

	v := e.CurrentView()
	assert.True(t, v.Empty)
	st := e.Status()
	assert.False(t, st.HasData)
	assert.Equal(t, 0, st.Targets)
}

func TestNavigateRejectsInvalidFilter(t *testing.T) {
	e, _ := newEngine(t, 1, 2)
	require.NoError(t, e.IngestLine(line("a", 1, 1, 1)))
	require.NoError(t, e.Navigate(navigation.SetFilter{Pattern: "peak"}))

	err := e.Navigate(navigation.SetFilter{Pattern: "re:[a-"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, series.ErrInvalidFilterPattern))
	assert.Equal(t, "peak", e.Status().Filter)
	assert.Equal(t, "memory.peak_memory", e.CurrentView().CursorPath)
}
