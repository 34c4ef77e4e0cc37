package mocks

import (
	"sync"

	"github.com/mcoot/estimategame/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued results are consumed in order; once a queue is empty a
// deterministic fallback is returned. It is safe for concurrent use.
type MockRandom struct {
	mu sync.Mutex

	intnResults    []int
	float64Results []float64
	stringResults  []string

	// fallbackCounter makes unqueued String results unique
	fallbackCounter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intnResults) == 0 {
		return 0
	}
	result := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	if n > 0 {
		result %= n
	}
	return result
}

// Float64 returns the next queued result, or 0.5 if none remaining
func (r *MockRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.float64Results) == 0 {
		return 0.5
	}
	result := r.float64Results[0]
	r.float64Results = r.float64Results[1:]
	return result
}

// String returns the next queued result. With nothing queued it builds a
// unique string of the requested length from the alphabet.
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) > 0 {
		result := r.stringResults[0]
		r.stringResults = r.stringResults[1:]
		return result
	}
	if length <= 0 || alphabet == "" {
		return ""
	}
	r.fallbackCounter++
	out := make([]byte, length)
	n := r.fallbackCounter
	for i := length - 1; i >= 0; i-- {
		out[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	return string(out)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = append(r.intnResults, values...)
}

// QueueFloat64 adds values to the Float64 result queue
func (r *MockRandom) QueueFloat64(values ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.float64Results = append(r.float64Results, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = nil
	r.float64Results = nil
	r.stringResults = nil
}
