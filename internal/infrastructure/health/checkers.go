package health

import (
	"context"

	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/go-redis/redis/v8"
)

// inferenceHealthChecker probes the model backend via its ping.
type inferenceHealthChecker struct{ client ports.InferenceClient }

func (c *inferenceHealthChecker) Name() string                    { return "inference" }
func (c *inferenceHealthChecker) Check(ctx context.Context) error { return c.client.Ping(ctx) }

// retrieverHealthChecker probes the context store.
type retrieverHealthChecker struct{ retriever ports.ContextRetriever }

func (c *retrieverHealthChecker) Name() string                    { return "retrieval" }
func (c *retrieverHealthChecker) Check(ctx context.Context) error { return c.retriever.Ping(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client *redis.Client }

func (c *redisHealthChecker) Name() string                    { return "redis" }
func (c *redisHealthChecker) Check(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// NewInferenceHealthChecker creates a health checker for the inference backend.
func NewInferenceHealthChecker(client ports.InferenceClient) ports.HealthChecker {
	return &inferenceHealthChecker{client: client}
}

// NewRetrieverHealthChecker creates a health checker for the retrieval store.
func NewRetrieverHealthChecker(retriever ports.ContextRetriever) ports.HealthChecker {
	return &retrieverHealthChecker{retriever: retriever}
}

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client *redis.Client) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}
