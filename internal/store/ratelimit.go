package store

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Slow mode delays the platform accepts, in seconds.
var slowModeDelays = map[int]bool{0: true, 10: true, 30: true, 60: true, 300: true, 900: true, 3600: true}

// ValidSlowModeDelay reports whether delay is one of the accepted values.
func ValidSlowModeDelay(delay int) bool {
	return slowModeDelays[delay]
}

// RateLimits configures the per-chat send ceilings. A zero value disables a gate.
type RateLimits struct {
	Enabled        bool
	PerSecond      int
	GroupPerMinute int
}

// DefaultRateLimits matches the platform's documented ceilings.
func DefaultRateLimits() RateLimits {
	return RateLimits{Enabled: true, PerSecond: 30, GroupPerMinute: 20}
}

// Gate names reported in RateDecision.
const (
	GateSlowMode  = "slow_mode"
	GatePerSecond = "per_second"
	GatePerMinute = "per_minute"
)

// RateDecision is the outcome of CheckRateLimit.
type RateDecision struct {
	Allowed bool
	// RetryAfter is in whole seconds, at least 1 when not allowed.
	RetryAfter int
	Gate       string
}

// chatLimiter holds the token buckets of one chat. Buckets are refilled from the
// simulated clock, never from wall time.
type chatLimiter struct {
	perSecond *rate.Limiter
	perMinute *rate.Limiter
	lastSend  map[int64]time.Time
}

func newChatLimiter(l RateLimits, group bool) *chatLimiter {
	cl := &chatLimiter{lastSend: make(map[int64]time.Time)}
	if l.PerSecond > 0 {
		cl.perSecond = rate.NewLimiter(rate.Limit(l.PerSecond), l.PerSecond)
	}
	if group && l.GroupPerMinute > 0 {
		cl.perMinute = rate.NewLimiter(rate.Limit(float64(l.GroupPerMinute)/60.0), l.GroupPerMinute)
	}
	return cl
}

// check evaluates every gate without consuming anything. Slow mode is a chat
// setting and applies even when the ceilings are disabled.
func (cl *chatLimiter) check(now time.Time, userID int64, slowMode int, ceilings bool) RateDecision {
	if slowMode > 0 {
		if last, ok := cl.lastSend[userID]; ok {
			elapsed := now.Sub(last)
			delay := time.Duration(slowMode) * time.Second
			if elapsed < delay {
				return RateDecision{Gate: GateSlowMode, RetryAfter: ceilSeconds(delay - elapsed)}
			}
		}
	}
	if !ceilings {
		return RateDecision{Allowed: true}
	}
	if cl.perSecond != nil {
		if wait, ok := bucketWait(cl.perSecond, now); !ok {
			return RateDecision{Gate: GatePerSecond, RetryAfter: ceilSeconds(wait)}
		}
	}
	if cl.perMinute != nil {
		if wait, ok := bucketWait(cl.perMinute, now); !ok {
			return RateDecision{Gate: GatePerMinute, RetryAfter: ceilSeconds(wait)}
		}
	}
	return RateDecision{Allowed: true}
}

// commit consumes one token from each bucket and stamps the member's last send.
func (cl *chatLimiter) commit(now time.Time, userID int64, ceilings bool) {
	cl.lastSend[userID] = now
	if !ceilings {
		return
	}
	if cl.perSecond != nil {
		cl.perSecond.AllowN(now, 1)
	}
	if cl.perMinute != nil {
		cl.perMinute.AllowN(now, 1)
	}
}

// bucketWait returns how long until one token is available.
func bucketWait(l *rate.Limiter, now time.Time) (time.Duration, bool) {
	tokens := l.TokensAt(now)
	if tokens >= 1 {
		return 0, true
	}
	missing := 1 - tokens
	return time.Duration(missing / float64(l.Limit()) * float64(time.Second)), false
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
