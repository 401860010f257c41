package stress

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rampTick is how often the rate is raised during ramp-up.
const rampTick = 100 * time.Millisecond

// Scheduler paces dispatches, bounds concurrency and picks the next target
// by weight.
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	sem     chan struct{}

	mu          sync.Mutex
	targets     []*Target
	totalWeight int
}

func NewScheduler(config *Config) *Scheduler {
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 100
	}

	s := &Scheduler{
		config: config,
		sem:    make(chan struct{}, maxConcurrency),
	}
	initial := config.Rate
	if r := s.RateAt(rampTick); r > 0 {
		initial = r
	}
	s.limiter = rate.NewLimiter(rate.Limit(initial), 1)
	return s
}

// Add registers a target. A weight below one counts as one.
func (s *Scheduler) Add(t *Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Weight < 1 {
		t.Weight = 1
	}
	s.targets = append(s.targets, t)
	s.totalWeight += t.Weight
}

// Next picks a target at random in proportion to its weight.
func (s *Scheduler) Next() *Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return s.targets[0]
	}

	n := rand.IntN(s.totalWeight)
	for _, t := range s.targets {
		if n < t.Weight {
			return t
		}
		n -= t.Weight
	}
	return s.targets[len(s.targets)-1]
}

// Wait blocks until the rate limiter admits another dispatch.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Acquire acquires a slot from the concurrency semaphore
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a slot back to the semaphore
func (s *Scheduler) Release() {
	<-s.sem
}

// RateAt returns the target rate elapsed into the run, growing linearly
// during ramp-up.
func (s *Scheduler) RateAt(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	return s.config.Rate * float64(elapsed) / float64(s.config.RampUp)
}

// SetRate updates the limiter. Non-positive rates are ignored.
func (s *Scheduler) SetRate(r float64) {
	if r > 0 {
		s.limiter.SetLimit(rate.Limit(r))
	}
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}
