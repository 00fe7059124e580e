package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRewardCounters(t *testing.T) {
	m := New()

	m.Issued("broadcaster_daily", 25)
	m.Issued("broadcaster_daily", 12)
	m.Denied("viewer_daily", "account_too_new")
	m.Failure("viewer_daily", "wallet_credit")
	m.Compensation("pool_credit")
	m.ObservePoolBalance(999_963)
	m.SetPending(3)

	body := scrape(t, m)
	assert.Contains(t, body, `rewards_issued_total{kind="broadcaster_daily"} 2`)
	assert.Contains(t, body, `rewards_issued_coins_total{kind="broadcaster_daily"} 37`)
	assert.Contains(t, body, `rewards_denied_total{kind="viewer_daily",status="account_too_new"} 1`)
	assert.Contains(t, body, `rewards_failures_total{kind="viewer_daily",step="wallet_credit"} 1`)
	assert.Contains(t, body, `rewards_compensations_total{step="pool_credit"} 1`)
	assert.Contains(t, body, `rewards_pool_balance 999963`)
	assert.Contains(t, body, `rewards_pending_commits 3`)
}

func TestRequestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("/healthz", http.MethodGet, http.StatusOK, 5*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `rewards_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, `rewards_http_request_duration_seconds_count{method="GET",route="/healthz"} 1`)
}
