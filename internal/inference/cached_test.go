package inference

import (
	"context"
	"errors"
	"testing"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	calls  int
	closed bool
	err    error
}

func (e *countingEngine) Predict(_ context.Context, in models.ModelInput) (models.ProbabilityMap, error) {
	e.calls++
	if e.err != nil {
		return models.ProbabilityMap{}, e.err
	}
	values := make([]float32, in.Shape[1]*in.Shape[2])
	for i := range values {
		values[i] = in.Data[i*3]
	}
	return models.ProbabilityMap{Width: in.Shape[2], Height: in.Shape[1], Values: values}, nil
}

func (e *countingEngine) Close() error {
	e.closed = true
	return nil
}

type memoryStore struct {
	entries map[string]models.ProbabilityMap
	getErr  error
	setErr  error
	closed  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]models.ProbabilityMap{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (*models.ProbabilityMap, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memoryStore) Set(_ context.Context, key string, p models.ProbabilityMap) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = p
	return nil
}

func (s *memoryStore) Close() error {
	s.closed = true
	return nil
}

func testInput(v float32) models.ModelInput {
	return models.ModelInput{Shape: [4]int{1, 1, 2, 3}, Data: []float32{v, 0, 0, v / 2, 0, 0}}
}

func TestCachedServesRepeatedInputFromStore(t *testing.T) {
	engine := &countingEngine{}
	c := NewCached(engine, newMemoryStore(), logger.NoOpLogger{})

	first, err := c.Predict(context.Background(), testInput(0.8))
	require.NoError(t, err)
	second, err := c.Predict(context.Background(), testInput(0.8))
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, first, second)

	_, err = c.Predict(context.Background(), testInput(0.3))
	require.NoError(t, err)
	assert.Equal(t, 2, engine.calls)
}

func TestCachedIgnoresStoreFailures(t *testing.T) {
	engine := &countingEngine{}
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := NewCached(engine, store, logger.NoOpLogger{})

	p, err := c.Predict(context.Background(), testInput(0.5))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, p.Values)
}

func TestCachedPropagatesEngineError(t *testing.T) {
	engine := &countingEngine{err: errors.New("stalled")}
	store := newMemoryStore()
	c := NewCached(engine, store, logger.NoOpLogger{})

	_, err := c.Predict(context.Background(), testInput(0.5))
	assert.Error(t, err)
	assert.Empty(t, store.entries)
}

func TestCachedCloseClosesBoth(t *testing.T) {
	engine := &countingEngine{}
	store := newMemoryStore()

	require.NoError(t, NewCached(engine, store, logger.NoOpLogger{}).Close())
	assert.True(t, engine.closed)
	assert.True(t, store.closed)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey(testInput(0.4)), CacheKey(testInput(0.4)))
	assert.NotEqual(t, CacheKey(testInput(0.4)), CacheKey(testInput(0.41)))
	assert.Contains(t, CacheKey(testInput(0.4)), "probmap:")
}

func TestProbabilityMapEncoding(t *testing.T) {
	p := models.ProbabilityMap{Width: 2, Height: 2, Values: []float32{0, 0.25, 0.5, 1}}

	decoded, err := DecodeProbabilityMap(EncodeProbabilityMap(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	_, err = DecodeProbabilityMap([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = DecodeProbabilityMap(EncodeProbabilityMap(p)[:12])
	assert.Error(t, err)
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	// 2^31 x 2^31 would wrap the length check to a match on 64-bit ints.
	header := []byte{0, 0, 0, 0x80, 0, 0, 0, 0x80}

	assert.NotPanics(t, func() {
		_, err := DecodeProbabilityMap(header)
		assert.Error(t, err)
	})

	_, err := DecodeProbabilityMap([]byte{0, 0, 0, 0, 2, 0, 0, 0})
	assert.Error(t, err, "zero width")
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, uint8(0), quantize(-1))
	assert.Equal(t, uint8(128), quantize(0.5))
	assert.Equal(t, uint8(255), quantize(2))
}
