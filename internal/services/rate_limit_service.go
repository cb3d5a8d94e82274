package services

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds admin login throttling configuration
type RateLimitConfig struct {
	MaxEmailAttempts int           // Max login attempts per email
	EmailWindow      time.Duration // Time window for the email limit
	MaxIPAttempts    int           // Max login attempts per IP
	IPWindow         time.Duration // Time window for the IP limit
	MaxTrackedKeys   int
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailAttempts: 5,                // 5 attempts
		EmailWindow:      15 * time.Minute, // per 15 minutes
		MaxIPAttempts:    20,               // 20 attempts
		IPWindow:         1 * time.Hour,    // per hour
		MaxTrackedKeys:   10000,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// RetryAfterSeconds rounds the wait up to whole seconds for the Retry-After header
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService throttles admin login attempts per email and per IP.
// State is in memory and per process.
type RateLimitService struct {
	config   RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*trackedLimiter
	now      func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		config:   config,
		limiters: make(map[string]*trackedLimiter),
		now:      time.Now,
	}
}

// CheckLoginAttempt spends one attempt for the email and one for the IP.
// A rejected attempt spends neither.
func (s *RateLimitService) CheckLoginAttempt(email, ip string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var emailReservation *rate.Reservation
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		reservation, wait, ok := s.reserve("email:"+email, s.config.MaxEmailAttempts, s.config.EmailWindow, now)
		if !ok {
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many login attempts for this account. Please try again in %s", wait.Round(time.Second)),
				RetryAfter: wait,
				Type:       "email",
			}
		}
		emailReservation = reservation
	}

	if ip != "" {
		if _, wait, ok := s.reserve("ip:"+ip, s.config.MaxIPAttempts, s.config.IPWindow, now); !ok {
			if emailReservation != nil {
				emailReservation.CancelAt(now)
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many login attempts from this IP address. Please try again in %s", wait.Round(time.Second)),
				RetryAfter: wait,
				Type:       "ip",
			}
		}
	}

	return nil
}

// TrackedKeys returns how many emails and IPs currently hold a limiter
func (s *RateLimitService) TrackedKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// reserve takes a token from the key's bucket. A bucket holds max tokens and
// refills one every window/max.
func (s *RateLimitService) reserve(key string, max int, window time.Duration, now time.Time) (*rate.Reservation, time.Duration, bool) {
	tracked, ok := s.limiters[key]
	if !ok {
		if len(s.limiters) >= s.config.MaxTrackedKeys {
			s.evict(now)
		}
		tracked = &trackedLimiter{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(max)), max),
		}
		s.limiters[key] = tracked
	}
	tracked.lastSeen = now

	reservation := tracked.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return nil, window, false
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return nil, delay, false
	}
	return reservation, 0, true
}

// evict drops keys idle for longer than both windows, then the least recently
// seen key if the map is still full
func (s *RateLimitService) evict(now time.Time) {
	idle := s.config.EmailWindow
	if s.config.IPWindow > idle {
		idle = s.config.IPWindow
	}
	cutoff := now.Add(-idle)

	var oldestKey string
	var oldestSeen time.Time
	for key, tracked := range s.limiters {
		if tracked.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			continue
		}
		if oldestKey == "" || tracked.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = tracked.lastSeen
		}
	}

	if len(s.limiters) >= s.config.MaxTrackedKeys && oldestKey != "" {
		delete(s.limiters, oldestKey)
	}
}
