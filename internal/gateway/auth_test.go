package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.False(t, safeEqual("secret", "secreT"))
	assert.False(t, safeEqual("secret", "secret-longer"))
	assert.False(t, safeEqual("", "secret"))
	assert.True(t, safeEqual("", ""))
}

func TestOperatorToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/operator?token=from-query", nil)
	assert.Equal(t, "from-query", operatorToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", operatorToken(r))

	r = httptest.NewRequest("GET", "/ws/operator", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, operatorToken(r))
}

func TestAuthRateLimiter(t *testing.T) {
	now := time.Date(2026, 10, 13, 12, 0, 0, 0, time.UTC)
	l := newAuthRateLimiter()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1:5000"))
	for i := 0; i < authRateMaxFails; i++ {
		l.recordFailure("10.0.0.1:5000")
	}
	assert.False(t, l.allow("10.0.0.1:6000"), "port must not matter")
	assert.True(t, l.allow("10.0.0.2:5000"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, l.allow("10.0.0.1:5000"))
}

func TestAuthRateLimiterPrune(t *testing.T) {
	now := time.Date(2026, 10, 13, 12, 0, 0, 0, time.UTC)
	l := newAuthRateLimiter()
	l.now = func() time.Time { return now }

	l.recordFailure("10.0.0.1")
	now = now.Add(time.Minute)
	l.recordFailure("10.0.0.2")

	now = now.Add(authRateWindow - 30*time.Second)
	l.prune()
	assert.NotContains(t, l.failures, "10.0.0.1")
	assert.Contains(t, l.failures, "10.0.0.2")
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"https://staff.example"})

	r := httptest.NewRequest("GET", "/ws/operator", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://staff.example")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))

	assert.True(t, checkWebSocketOrigin([]string{"*"})(r))
}
