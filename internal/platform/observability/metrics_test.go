package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(transitionCounter.WithLabelValues("pause", "error"))
	RecordTransition("pause", errors.New("already paused"))
	require.Equal(t, before+1, testutil.ToFloat64(transitionCounter.WithLabelValues("pause", "error")))
}

func TestRecordTrackedIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(trackedSeconds.WithLabelValues("WORK"))
	RecordTracked("WORK", 0)
	RecordTracked("WORK", 90*time.Second)
	require.Equal(t, before+90, testutil.ToFloat64(trackedSeconds.WithLabelValues("WORK")))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	RecordLearn("ok", 0.5)
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.True(t, strings.Contains(rec.Body.String(), "tempo_profile_learn_total"))
}
