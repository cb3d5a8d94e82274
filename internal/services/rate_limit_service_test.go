package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitTest(config RateLimitConfig) (*RateLimitService, *time.Time) {
	now := time.Date(2024, 2, 25, 12, 0, 0, 0, time.UTC)
	service := NewRateLimitService(config)
	service.now = func() time.Time { return now }
	return service, &now
}

func testRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailAttempts: 2,
		EmailWindow:      64 * time.Second,
		MaxIPAttempts:    3,
		IPWindow:         time.Minute,
		MaxTrackedKeys:   100,
	}
}

func TestCheckLoginAttempt_WithinLimit(t *testing.T) {
	service, _ := setupRateLimitTest(testRateLimitConfig())

	assert.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "203.0.113.7"))
	assert.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "203.0.113.7"))
	assert.Equal(t, 2, service.TrackedKeys())
}

func TestCheckLoginAttempt_EmailExceeded(t *testing.T) {
	service, now := setupRateLimitTest(testRateLimitConfig())

	require.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "203.0.113.7"))
	require.NoError(t, service.CheckLoginAttempt("Owner@Lessons.test ", "203.0.113.8"))

	err := service.CheckLoginAttempt("owner@lessons.test", "203.0.113.9")
	require.Error(t, err)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, "email", rateErr.Type)
	assert.Equal(t, 32*time.Second, rateErr.RetryAfter)
	assert.Equal(t, 32, rateErr.RetryAfterSeconds())

	// One token refills every window/max
	*now = now.Add(33 * time.Second)
	assert.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "203.0.113.9"))
}

func TestCheckLoginAttempt_IPExceeded(t *testing.T) {
	service, _ := setupRateLimitTest(testRateLimitConfig())

	require.NoError(t, service.CheckLoginAttempt("a@lessons.test", "203.0.113.7"))
	require.NoError(t, service.CheckLoginAttempt("b@lessons.test", "203.0.113.7"))
	require.NoError(t, service.CheckLoginAttempt("c@lessons.test", "203.0.113.7"))

	err := service.CheckLoginAttempt("d@lessons.test", "203.0.113.7")
	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, "ip", rateErr.Type)
	assert.Contains(t, rateErr.Error(), "Too many login attempts from this IP address")
}

func TestCheckLoginAttempt_IPRejectionKeepsEmailAttempts(t *testing.T) {
	service, _ := setupRateLimitTest(testRateLimitConfig())

	for _, email := range []string{"a@lessons.test", "b@lessons.test", "c@lessons.test"} {
		require.NoError(t, service.CheckLoginAttempt(email, "203.0.113.7"))
	}

	for i := 0; i < 3; i++ {
		err := service.CheckLoginAttempt("owner@lessons.test", "203.0.113.7")
		var rateErr *RateLimitError
		require.True(t, errors.As(err, &rateErr))
		assert.Equal(t, "ip", rateErr.Type)
	}

	// Both email attempts are still available from another address
	assert.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "198.51.100.4"))
	assert.NoError(t, service.CheckLoginAttempt("owner@lessons.test", "198.51.100.4"))
}

func TestCheckLoginAttempt_EvictsIdleKeys(t *testing.T) {
	config := testRateLimitConfig()
	config.MaxTrackedKeys = 2
	service, now := setupRateLimitTest(config)

	require.NoError(t, service.CheckLoginAttempt("a@lessons.test", ""))
	require.NoError(t, service.CheckLoginAttempt("b@lessons.test", ""))

	*now = now.Add(3 * time.Minute)
	require.NoError(t, service.CheckLoginAttempt("c@lessons.test", ""))
	assert.Equal(t, 1, service.TrackedKeys())
}

func TestCheckLoginAttempt_EvictsOldestWhenFull(t *testing.T) {
	config := testRateLimitConfig()
	config.MaxTrackedKeys = 2
	service, now := setupRateLimitTest(config)

	require.NoError(t, service.CheckLoginAttempt("a@lessons.test", ""))
	*now = now.Add(time.Second)
	require.NoError(t, service.CheckLoginAttempt("b@lessons.test", ""))
	*now = now.Add(time.Second)
	require.NoError(t, service.CheckLoginAttempt("c@lessons.test", ""))

	assert.Equal(t, 2, service.TrackedKeys())
}
