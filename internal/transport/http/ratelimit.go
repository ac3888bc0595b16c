package http

import "golang.org/x/time/rate"

// connLimiter bounds how many frames one connection may send.
// A nil limiter allows everything.
type connLimiter struct {
	limiter *rate.Limiter
}

func newConnLimiter(perSec float64, burst int) *connLimiter {
	if perSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &connLimiter{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *connLimiter) allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
