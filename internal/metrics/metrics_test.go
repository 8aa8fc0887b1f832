package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SamplesTotal.Inc()
	a.LinesTotal.WithLabelValues("ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SamplesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SamplesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.LinesTotal.WithLabelValues("ok")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.KnownPaths.Set(3)
	r.PollRunsTotal.WithLabelValues("local", "ok").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "magpies_known_paths 3")
	assert.Contains(t, string(body), `magpies_poll_runs_total{status="ok",target="local"} 1`)
}
