package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v2:"
	cacheOpTimeout       = 2 * time.Second
)

// idempotencyRecord is what Redis holds for a key: a reservation while the
// request runs, then the replayable response.
type idempotencyRecord struct {
	Fingerprint string            `json:"fingerprint"`
	Done        bool              `json:"done"`
	Status      int               `json:"status,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type idempotencyStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func (s idempotencyStore) load(key string) (idempotencyRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return idempotencyRecord{}, false, nil
	}
	if err != nil {
		return idempotencyRecord{}, false, err
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return idempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// reserve claims key for a running request. It reports false when another
// request claimed it first.
func (s idempotencyStore) reserve(key, fingerprint string) (bool, error) {
	payload, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.cache.SetNX(ctx, key, payload, s.ttl).Result()
}

func (s idempotencyStore) save(key string, rec idempotencyRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s idempotencyStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// unsafe methods, so a retried transfer request never broadcasts twice.
// Requests without the header pass through. Keys are scoped per route, and
// reusing a key with a different body is rejected.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := idempotencyStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		switch method {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}
		cacheKey := idempotencyPrefix + method + ":" + c.Path() + ":" + key
		sum := sha256.Sum256(c.Body())
		fingerprint := hex.EncodeToString(sum[:])

		rec, found, err := store.load(cacheKey)
		if err != nil {
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if found {
			return replay(c, rec, fingerprint)
		}

		ok, err := store.reserve(cacheKey, fingerprint)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			store.release(cacheKey)
			return err
		}

		done := idempotencyRecord{
			Fingerprint: fingerprint,
			Done:        true,
			Status:      c.Response().StatusCode(),
			Body:        string(c.Response().Body()),
			Headers:     map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			done.Headers[string(k)] = string(v)
		})
		if err := store.save(cacheKey, done); err != nil {
			// The reservation stays, so repeats keep getting 409 until it expires.
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
		}
		return nil
	}
}

func replay(c *fiber.Ctx, rec idempotencyRecord, fingerprint string) error {
	if rec.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused with a different request body")
	}
	if !rec.Done {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	for header, value := range rec.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(rec.Status).SendString(rec.Body)
}
