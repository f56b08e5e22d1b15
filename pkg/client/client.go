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

// Package client talks to the Nest app API: the OAuth-style auth chain,
// the initial app_launch snapshot, the v6 long-poll subscribe, and
// imperative object updates. All calls are scoped by context; auth,
// snapshot and update requests use the short configured timeout while
// subscribe holds the connection for up to a day.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/emberhome/nestlink/pkg/config"
	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

var errNoTransportURL = errors.New("no transport url known, app launch must run first")

// Client is the Nest API client for one configured account. It owns the
// credential layers and the transport URL learned at app launch.
type Client struct {
	httpClient HTTPClient
	log        logger.Logger
	env        models.Environment

	refreshToken string
	issueToken   string
	cookies      string

	tokens   *TokenStore
	archiver *Archiver

	timeout time.Duration

	// refreshMu keeps the auth chain single-flight: concurrent callers
	// wait for the in-progress refresh instead of stacking their own.
	refreshMu sync.Mutex

	transportMu  sync.RWMutex
	transportURL string

	// Endpoint bases, overridable in tests.
	tokenURL  string
	jwtURL    string
	cameraURL string
	nexusHost string
	weather   string
}

// New creates a Client from the bridge configuration. A nil httpClient
// selects a default transport.
func New(cfg *config.Config, httpClient HTTPClient, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient:   httpClient,
		log:          log,
		env:          cfg.NestEnvironment(),
		refreshToken: cfg.RefreshToken,
		issueToken:   cfg.IssueToken,
		cookies:      cfg.Cookies,
		tokens:       NewTokenStore(),
		archiver:     NewArchiver(cfg.SaveResponses, cfg.ResponseDir, log),
		timeout:      time.Duration(cfg.Timeout),
		tokenURL:     tokenURL,
		jwtURL:       jwtURL,
		cameraURL:    cameraAPIURL,
		nexusHost:    defaultNexusHost,
		weather:      weatherURL,
	}
}

// TransportURL returns the long-poll endpoint learned from the last app
// launch or session, or "" when none is known yet.
func (c *Client) TransportURL() string {
	c.transportMu.RLock()
	defer c.transportMu.RUnlock()

	return c.transportURL
}

func (c *Client) setTransportURL(u string) {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	c.transportURL = u
}

// do issues one request and returns the status code and the fully read
// body. The timeout, when non-zero, bounds the whole exchange including
// the body read.
func (c *Client) do(ctx context.Context, method, rawURL string, header http.Header, body []byte, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if header != nil {
		req.Header = header
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// sessionHeader builds the auth headers every data-plane call carries.
func sessionHeader(session *models.Session) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Basic "+session.AccessToken)
	header.Set("X-nl-user-id", session.UserID)
	header.Set("X-nl-protocol-version", protocolVersion)
	header.Set("Content-Type", "application/json")

	return header
}

// checkStatus maps the vendor's well-known failure statuses onto the
// error taxonomy. Other statuses fall through: the body may still be a
// JSON error payload the caller can decode.
func checkStatus(op string, status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %s", op, ErrNotAuthenticated, body)
	case http.StatusBadGateway:
		return fmt.Errorf("%s: %w: bad gateway", op, ErrServiceUnavailable)
	case http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: gateway timeout", op, ErrServiceUnavailable)
	}

	return nil
}

type launchRequest struct {
	KnownBucketTypes    []string `json:"known_bucket_types"`
	KnownBucketVersions []string `json:"known_bucket_versions"`
}

// Launch fetches the initial full-state snapshot, declaring the record
// types this client understands, and learns the transport URL for the
// subscribe loop.
func (c *Client) Launch(ctx context.Context) (*models.AppLaunchResponse, error) {
	const op = "app launch"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(launchRequest{
		KnownBucketTypes:    knownBucketTypes,
		KnownBucketVersions: []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	launchURL := fmt.Sprintf("%s/api/0.1/user/%s/app_launch", c.env.Host, session.UserID)

	status, body, err := c.do(ctx, http.MethodPost, launchURL, sessionHeader(session), reqBody, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("first_data", json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	var launch models.AppLaunchResponse
	if err := json.Unmarshal(body, &launch); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	if u := launch.ServiceURLs.URLs.TransportURL; u != "" {
		c.setTransportURL(u)
	}

	c.log.Debug().
		Int("buckets", len(launch.UpdatedBuckets)).
		Str("transport_url", c.TransportURL()).
		Msg("Fetched initial state")

	return &launch, nil
}

type subscribeRequest struct {
	Objects []models.CursorEntry `json:"objects"`
}

// Subscribe issues one long-poll request scoped by the given cursor and
// blocks until the server reports newer revisions, drops the
// connection, or the day-long client timeout lapses.
func (c *Client) Subscribe(ctx context.Context, cursor []models.CursorEntry) (*models.SubscribeResponse, error) {
	const op = "subscribe"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	transport := c.TransportURL()
	if transport == "" {
		return nil, errNoTransportURL
	}

	reqBody, err := json.Marshal(subscribeRequest{Objects: cursor})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, transport+"/v6/subscribe", sessionHeader(session), reqBody, subscribeTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug().Int("status", status).Msg("Got data from subscribe")

	c.archiver.Save("subscribe", json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	var result models.SubscribeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	return &result, nil
}

// ObjectUpdate is one imperative change: merge-patch semantics, the
// server folds Value into the object named by ObjectKey.
type ObjectUpdate struct {
	ObjectKey string      `json:"object_key"`
	Op        string      `json:"op"`
	Value     interface{} `json:"value"`
}

type putRequest struct {
	Session string         `json:"session"`
	Objects []ObjectUpdate `json:"objects"`
}

// UpdateObjects pushes imperative object changes. An empty Op defaults
// to MERGE. Returns the accepted object states.
func (c *Client) UpdateObjects(ctx context.Context, updates []ObjectUpdate) (*models.SubscribeResponse, error) {
	const op = "update objects"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	transport := c.TransportURL()
	if transport == "" {
		return nil, errNoTransportURL
	}

	for i := range updates {
		if updates[i].Op == "" {
			updates[i].Op = "MERGE"
		}
	}

	reqBody, err := json.Marshal(putRequest{
		Session: fmt.Sprintf("ios-$%s.%d.%d", session.UserID, 100+rand.Intn(900), time.Now().Unix()),
		Objects: updates,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, transport+"/v6/put", sessionHeader(session), reqBody, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("put", json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	var result models.SubscribeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	return &result, nil
}
