package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// expvar panics on duplicate names, so a single updater instance is shared
// across the subtests.
func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	defer su.Stop()

	su.RegisterMetric("TestCounter")

	t.Run("incr and decr converge on the metric", func(t *testing.T) {
		su.Incr("TestCounter")
		su.Incr("TestCounter")
		su.Decr("TestCounter")

		assert.Eventually(t, func() bool {
			return su.vars.Get("TestCounter").(*expvar.Int).Value() == 1
		}, time.Second, 10*time.Millisecond, "expected metric to converge to 1")
	})

	t.Run("serves metrics on /debug/vars", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status 200, got %d", rr.Code)

		var data map[string]any
		err := json.NewDecoder(rr.Body).Decode(&data)
		assert.NoError(t, err, "expected metrics payload to decode")
		assert.Contains(t, data, "Uptime", "expected uptime metric")
		assert.Contains(t, data, "TestCounter", "expected registered metric")
	})
}
