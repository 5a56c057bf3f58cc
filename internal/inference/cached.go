package inference

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
)

const keyPrefix = "probmap:"

// Store persists probability maps by key. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*models.ProbabilityMap, error)
	Set(ctx context.Context, key string, p models.ProbabilityMap) error
	Close() error
}

// Cached answers repeated inputs from a Store and falls through to the wrapped engine
// otherwise. Store failures are logged and never fail a prediction.
type Cached struct {
	engine Engine
	store  Store
	logger logger.Logger
}

func NewCached(engine Engine, store Store, log logger.Logger) *Cached {
	return &Cached{engine: engine, store: store, logger: log}
}

func (c *Cached) Predict(ctx context.Context, in models.ModelInput) (models.ProbabilityMap, error) {
	key := CacheKey(in)

	cached, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warning("InferenceCache", "cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	} else if cached != nil {
		c.logger.Debug("InferenceCache", "cache hit", map[string]interface{}{"key": key})
		return *cached, nil
	}

	p, err := c.engine.Predict(ctx, in)
	if err != nil {
		return models.ProbabilityMap{}, err
	}

	if err := c.store.Set(ctx, key, p); err != nil {
		c.logger.Warning("InferenceCache", "cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return p, nil
}

func (c *Cached) Close() error {
	storeErr := c.store.Close()
	if err := c.engine.Close(); err != nil {
		return err
	}
	return storeErr
}

// CacheKey hashes the input tensor bytes and shape.
func CacheKey(in models.ModelInput) string {
	h := md5.New()
	buf := make([]byte, 4)
	for _, d := range in.Shape {
		binary.LittleEndian.PutUint32(buf, uint32(d))
		h.Write(buf)
	}
	for _, v := range in.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		h.Write(buf)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
