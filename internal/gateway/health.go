package gateway

import (
	"math"
	"sync"
	"time"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// healthMonitor is a circuit breaker over the backend. Repeated failures open
// the circuit so a dead backend fails fast instead of burning the HTTP
// timeout on every call; after the recovery window one probe call is let
// through and a success closes the circuit again.
type healthMonitor struct {
	successCount     int64
	failureCount     int64
	lastResponse     time.Time
	state            circuitState
	failureThreshold int
	recoveryTimeout  time.Duration
	mutex            sync.Mutex
}

func newHealthMonitor(failureThreshold int, recoveryTimeout time.Duration) *healthMonitor {
	return &healthMonitor{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            circuitClosed,
	}
}

func (hm *healthMonitor) CanProceed() bool {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	switch hm.state {
	case circuitOpen:
		if time.Since(hm.lastResponse) > hm.recoveryTimeout {
			hm.state = circuitHalfOpen
			return true
		}
		return false
	case circuitHalfOpen, circuitClosed:
		return true
	default:
		return false
	}
}

func (hm *healthMonitor) RecordSuccess() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.successCount++
	hm.lastResponse = time.Now()

	if hm.state == circuitHalfOpen {
		hm.state = circuitClosed
		hm.failureCount = 0
	}
}

func (hm *healthMonitor) RecordFailure() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.failureCount++
	hm.lastResponse = time.Now()

	if hm.failureCount >= int64(hm.failureThreshold) {
		hm.state = circuitOpen
	}
}

// Load blends the failure rate with staleness of the last response. Used for
// diagnostics only; the circuit decision is threshold-based.
func (hm *healthMonitor) Load() float64 {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	total := hm.successCount + hm.failureCount
	if total == 0 {
		return 0.0
	}

	failureRate := float64(hm.failureCount) / float64(total)
	timeFactor := math.Min(1.0, time.Since(hm.lastResponse).Seconds()/30.0)

	return math.Min(1.0, failureRate+timeFactor*0.3)
}

func (hm *healthMonitor) StateName() string {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	switch hm.state {
	case circuitClosed:
		return "CLOSED"
	case circuitOpen:
		return "OPEN"
	case circuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
