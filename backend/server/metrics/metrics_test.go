package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(InstrumentHandler)
	r.HandleFunc("/api/habits/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/habits/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/habits/{id}", "404")))
}

func TestCounters(t *testing.T) {
	RecordToggle(true)
	RecordAchievements(2)
	RecordJob("purge", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(habitToggles.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(achievementsUnlocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(jobRuns.WithLabelValues("purge", "false")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gainz_growth_habit_toggles_total"))
}
