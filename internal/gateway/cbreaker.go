package gateway

import (
	"sync"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

func (s state) String() string {
	switch s {
	case open:
		return "open"
	case halfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// MicroBreaker opens after failThreshold consecutive transport failures and lets a single
// probe through once openFor has elapsed.
type MicroBreaker struct {
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool

	now      func() time.Time
	onChange func(from, to state) // called with mu held
}

func NewMicroBreaker(threshold int, openFor time.Duration) *MicroBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &MicroBreaker{failThreshold: threshold, openFor: openFor, now: time.Now}
}

// State reports closed, open or half-open.
func (b *MicroBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.String()
}

// Ready reports whether TryAcquire would currently succeed, without taking the probe slot.
func (b *MicroBreaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case open:
		return b.probeDue()
	case halfOpen:
		return !b.probeInFlight
	default:
		return true
	}
}

func (b *MicroBreaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if !b.probeDue() {
			return false
		}
		b.set(halfOpen)
		b.probeInFlight = true
		return true
	case halfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return true
	}
}

// Release gives back a probe slot taken by TryAcquire for a call whose outcome
// is unknown. The state does not change.
func (b *MicroBreaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
}

func (b *MicroBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.probeInFlight = false
	b.set(closed)
}

func (b *MicroBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.probeInFlight = false
		b.trip()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.trip()
	}
}

func (b *MicroBreaker) probeDue() bool {
	return b.now().After(b.nextTryAt) && !b.probeInFlight
}

func (b *MicroBreaker) trip() {
	b.nextTryAt = b.now().Add(b.openFor)
	b.set(open)
}

func (b *MicroBreaker) set(to state) {
	from := b.st
	if from == to {
		return
	}
	b.st = to
	metrics.GatewayBreakerState.Set(float64(to))
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
