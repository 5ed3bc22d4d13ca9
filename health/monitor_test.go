package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()
	assert.Zero(t, m.Count())

	m.Update("consumers", Status{Component: "wrong-name", Status: StatusHealthy})

	st, ok := m.Get("consumers")
	require.True(t, ok)
	assert.Equal(t, "consumers", st.Component)
	assert.False(t, st.Timestamp.IsZero())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMonitor_Aggregate(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("producers", "ok")
	m.UpdateDegraded("pipeline", "draining")

	st := m.Aggregate("pixelflow")
	assert.True(t, st.IsDegraded())
	require.Len(t, st.SubStatuses, 2)
	assert.Equal(t, "pipeline", st.SubStatuses[0].Component)
	assert.Equal(t, "producers", st.SubStatuses[1].Component)

	m.UpdateUnhealthy("consumers", "store down")
	assert.True(t, m.Aggregate("pixelflow").IsUnhealthy())
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.UpdateHealthy("even", "ok")
			} else {
				m.UpdateDegraded("odd", "slow")
			}
			_ = m.Aggregate("system")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, m.Count())
}

func TestHandler(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("pipeline", "running")

	rec := httptest.NewRecorder()
	Handler(m, "pixelflow").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "pixelflow", st.Component)
	assert.True(t, st.Healthy)

	m.UpdateUnhealthy("consumers", "failed")
	rec = httptest.NewRecorder()
	Handler(m, "pixelflow").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
