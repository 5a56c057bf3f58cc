// Package timing accumulates per-stage durations across a run.
package timing

import (
	"sort"
	"sync"
	"time"
)

// Stage names recorded by the review sessions.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageSave       = "save"
)

type Tracker struct {
	timings map[string][]time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		now:     time.Now,
	}
}

// Start begins timing operation; the returned func records the elapsed time.
// A nil Tracker hands back a no-op.
func (tt *Tracker) Start(operation string) func() time.Duration {
	if tt == nil {
		return func() time.Duration { return 0 }
	}

	start := tt.now()
	return func() time.Duration {
		d := tt.now().Sub(start)
		tt.Record(operation, d)
		return d
	}
}

func (tt *Tracker) Record(operation string, d time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.timings[operation] = append(tt.timings[operation], d)
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, duration := range timings {
		total += duration
	}

	return total / time.Duration(len(timings))
}

// Fields renders average durations keyed "<operation>_avg" for the logger.
func (tt *Tracker) Fields() map[string]interface{} {
	if tt == nil {
		return nil
	}

	tt.mu.RLock()
	ops := make([]string, 0, len(tt.timings))
	for op := range tt.timings {
		ops = append(ops, op)
	}
	tt.mu.RUnlock()
	sort.Strings(ops)

	fields := make(map[string]interface{}, len(ops))
	for _, op := range ops {
		fields[op+"_avg"] = tt.GetAverageTime(op).String()
	}
	return fields
}

func (tt *Tracker) Reset(operation string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if operation == "" {
		tt.timings = make(map[string][]time.Duration)
	} else {
		delete(tt.timings, operation)
	}
}
