// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package config loads and validates application configuration via Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	AI       AIConfig       `koanf:"ai"`
	Relay    RelayConfig    `koanf:"relay"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies HS256 tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTimeout is the token lifetime.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername/AdminPassword are the credentials accepted by the login
	// endpoint. The password is bcrypt-hashed at startup.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds BadgerDB settings for the conversation and
// notification store.
type StoreConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Used in tests and for
	// ephemeral deployments.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// AIConfig holds the assistant responder settings.
type AIConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`

	// SystemPrompt is prepended to every conversation sent upstream.
	SystemPrompt string `koanf:"system_prompt"`

	// HistoryLimit caps the number of prior messages sent as context.
	HistoryLimit int `koanf:"history_limit"`

	// Circuit breaker settings for the upstream responder.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `koanf:"breaker_open_timeout"`
}

// RelayConfig holds per-connection relay settings.
type RelayConfig struct {
	// EventsPerSecond and EventBurst bound inbound events per connection.
	EventsPerSecond float64 `koanf:"events_per_second"`
	EventBurst      int     `koanf:"event_burst"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment != "production"
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required (JWT_SECRET)")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive")
	}
	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		return fmt.Errorf("security.admin_username and security.admin_password are required")
	}
	if len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("security.admin_password must be at least 8 characters")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if c.Relay.EventsPerSecond <= 0 {
		return fmt.Errorf("relay.events_per_second must be positive")
	}
	if c.Relay.EventBurst < 1 {
		return fmt.Errorf("relay.event_burst must be at least 1")
	}
	if c.AI.HistoryLimit < 1 {
		return fmt.Errorf("ai.history_limit must be at least 1")
	}
	return nil
}
