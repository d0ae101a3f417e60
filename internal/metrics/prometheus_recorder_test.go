package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("meld", 150*time.Millisecond)
	pr.ObserveBuildDuration("report", 500*time.Millisecond)
	pr.IncBuildOutcome("report", OutcomeSuccess)
	pr.IncBuildOutcome("report", OutcomeSuccess)
	pr.AddMeldWarnings("report", 2)
	pr.AddMeldWarnings("report", 0)
	pr.AddLoopIterations("letters", 3)

	require.InDelta(t, 2, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("report", string(OutcomeSuccess))), 0)
	require.InDelta(t, 2, testutil.ToFloat64(pr.meldWarnings.WithLabelValues("report")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(pr.loopIterations.WithLabelValues("letters")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("meld", time.Second)
	pr.IncBuildOutcome("x", OutcomeFailed)
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncBuildOutcome("report", OutcomeFailed)

	path := filepath.Join(t.TempDir(), "docmeld.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `docmeld_build_outcomes_total{outcome="failed",target="report"} 1`)
}

func TestHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.AddLoopIterations("letters", 1)

	srv := httptest.NewServer(HTTPHandler(pr.Registry()))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "docmeld_loop_iterations_total")
}
