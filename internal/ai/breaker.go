// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package ai

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/models"
)

// ErrUnavailable is returned while the circuit is open. Callers translate it
// into a user-facing "assistant unavailable" event rather than retrying.
var ErrUnavailable = errors.New("assistant temporarily unavailable")

// BreakerResponder wraps a Responder with a circuit breaker. Consecutive
// upstream failures open the circuit; while open, Respond fails immediately
// without touching the network.
type BreakerResponder struct {
	inner Responder
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreakerResponder wraps inner with breaker settings from cfg.
func NewBreakerResponder(inner Responder, cfg config.AIConfig) *BreakerResponder {
	threshold := cfg.BreakerFailureThreshold

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ai-responder",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Assistant circuit breaker state change")
		},
	})

	return &BreakerResponder{inner: inner, cb: cb}
}

// Respond proxies to the wrapped Responder through the circuit breaker and
// records request metrics either way.
func (b *BreakerResponder) Respond(ctx context.Context, history []*models.ChatMessage) (string, error) {
	start := time.Now()

	reply, err := b.cb.Execute(func() (string, error) {
		return b.inner.Respond(ctx, history)
	})

	breakerOpen := errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
	metrics.RecordAIRequest(time.Since(start), err, breakerOpen)

	if breakerOpen {
		return "", ErrUnavailable
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}
