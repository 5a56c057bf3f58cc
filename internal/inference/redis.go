package inference

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"mask-calibrator/internal/models"
	"mask-calibrator/internal/opencv/safe"

	"github.com/redis/go-redis/v9"
)

// RedisOptions locate the cache server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps probability maps in redis so re-runs over the same inputs skip the model.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisStore{client: client, ttl: opts.TTL}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.ProbabilityMap, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	p, err := DecodeProbabilityMap(data)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, p models.ProbabilityMap) error {
	return s.client.Set(ctx, key, EncodeProbabilityMap(p), s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// EncodeProbabilityMap writes width, height and the values as little-endian 32-bit words.
func EncodeProbabilityMap(p models.ProbabilityMap) []byte {
	buf := make([]byte, 8+4*len(p.Values))
	binary.LittleEndian.PutUint32(buf[0:], uint32(p.Width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.Height))
	for i, v := range p.Values {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(v))
	}
	return buf
}

func DecodeProbabilityMap(data []byte) (models.ProbabilityMap, error) {
	if len(data) < 8 {
		return models.ProbabilityMap{}, fmt.Errorf("cached probability map truncated: %d bytes", len(data))
	}

	width := int(binary.LittleEndian.Uint32(data[0:]))
	height := int(binary.LittleEndian.Uint32(data[4:]))
	if err := safe.ValidateDimensions(width, height, "decode cached probability map"); err != nil {
		return models.ProbabilityMap{}, err
	}
	if len(data) != 8+4*width*height {
		return models.ProbabilityMap{}, fmt.Errorf("cached probability map is %d bytes, want %d", len(data), 8+4*width*height)
	}

	values := make([]float32, width*height)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+4*i:]))
	}
	return models.ProbabilityMap{Width: width, Height: height, Values: values}, nil
}
