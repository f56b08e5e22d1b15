/*
 * Copyright 2025 Ember Home, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads and validates the nestlink bridge configuration.
package config

import (
	"errors"
	"time"

	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

const (
	defaultPollInterval = 120 * time.Second
	defaultTimeout      = 10 * time.Second
	defaultResponseDir  = "responses"
	defaultNATSURL      = "nats://localhost:4222"

	minPollInterval = 30 * time.Second
	minTimeout      = 5 * time.Second
)

var (
	errMissingCredentials = errors.New("either refresh_token or issue_token plus cookies is required")
	errUnknownEnvironment = errors.New("unknown environment")
	errPollIntervalTooLow = errors.New("poll_interval must be at least 30s")
	errTimeoutTooLow      = errors.New("timeout must be at least 5s")
)

// Config is the bridge configuration, loaded from a JSON file.
type Config struct {
	// Environment selects the vendor backend: "production" (default)
	// or "fieldtest".
	Environment string `json:"environment"`

	// RefreshToken authenticates via the Google OAuth token endpoint.
	RefreshToken string `json:"refresh_token"`

	// IssueToken and Cookies together authenticate via a forwarded
	// browser session instead of a refresh token.
	IssueToken string `json:"issue_token"`
	Cookies    string `json:"cookies"`

	// PollInterval drives the periodic device-info/weather refresh.
	PollInterval models.Duration `json:"poll_interval"`

	// Timeout bounds auth, snapshot and update requests. The long-poll
	// subscribe request deliberately ignores it.
	Timeout models.Duration `json:"timeout"`

	// SaveResponses archives every raw server response under
	// ResponseDir for diagnostics.
	SaveResponses bool   `json:"save_responses"`
	ResponseDir   string `json:"response_dir"`

	// KVBucket names the JetStream KV bucket that mirrors raw objects.
	// Empty disables the mirror.
	KVBucket string `json:"kv_bucket"`

	NATS   models.NATSConfig   `json:"nats"`
	Events models.EventsConfig `json:"events"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate applies defaults and rejects unusable configurations.
func (c *Config) Validate() error {
	if c.Environment == "" {
		c.Environment = models.DefaultEnvironment
	}

	if _, ok := models.Environments[c.Environment]; !ok {
		return errUnknownEnvironment
	}

	if c.RefreshToken == "" && (c.IssueToken == "" || c.Cookies == "") {
		return errMissingCredentials
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollInterval) < minPollInterval {
		return errPollIntervalTooLow
	}

	if time.Duration(c.Timeout) == 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	if time.Duration(c.Timeout) < minTimeout {
		return errTimeoutTooLow
	}

	if c.SaveResponses && c.ResponseDir == "" {
		c.ResponseDir = defaultResponseDir
	}

	if c.NATS.URL == "" {
		c.NATS.URL = defaultNATSURL
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	return nil
}

// NestEnvironment resolves the configured environment to its backend
// description. Validate must have run first.
func (c *Config) NestEnvironment() models.Environment {
	return models.Environments[c.Environment]
}
