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

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/emberhome/nestlink/pkg/models"
)

const errorInvalidGrant = "invalid_grant"

// GetAccessToken acquires a Google OAuth access token using whichever
// credential the configuration provides: a refresh token, or an issue
// token with forwarded browser cookies.
func (c *Client) GetAccessToken(ctx context.Context) (*models.AccessToken, error) {
	switch {
	case c.refreshToken != "":
		return c.accessTokenFromRefreshToken(ctx)
	case c.issueToken != "" && c.cookies != "":
		return c.accessTokenFromCookies(ctx)
	default:
		return nil, ErrNoCredentials
	}
}

func (c *Client) accessTokenFromRefreshToken(ctx context.Context) (*models.AccessToken, error) {
	const op = "refresh token exchange"

	form := url.Values{}
	form.Set("refresh_token", c.refreshToken)
	form.Set("client_id", c.env.ClientID)
	form.Set("grant_type", "refresh_token")

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(ctx, http.MethodPost, c.tokenURL, header, []byte(form.Encode()), c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("refresh_token", json.RawMessage(body))

	return c.parseAccessToken(op, status, body)
}

func (c *Client) accessTokenFromCookies(ctx context.Context) (*models.AccessToken, error) {
	const op = "issue token exchange"

	header := http.Header{}
	header.Set("Sec-Fetch-Mode", "cors")
	header.Set("User-Agent", userAgent)
	header.Set("X-Requested-With", "XmlHttpRequest")
	header.Set("Referer", oauthReferer)
	header.Set("Cookie", c.cookies)

	status, body, err := c.do(ctx, http.MethodGet, c.issueToken, header, nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("access_token", json.RawMessage(body))

	return c.parseAccessToken(op, status, body)
}

// parseAccessToken applies the provider's error-field classification: an
// invalid_grant means the configured credential is permanently bad,
// anything else is a generic auth failure.
func (c *Client) parseAccessToken(op string, status int, body []byte) (*models.AccessToken, error) {
	var result models.GoogleAuthResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	if result.Error != "" {
		if result.Error == errorInvalidGrant {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrBadCredentials, result.Error)
		}

		return nil, fmt.Errorf("%s: %w: %s", op, ErrAuthFailed, result.Error)
	}

	token := &models.AccessToken{
		Token:  result.AccessToken,
		Expiry: time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}

	c.tokens.ReplaceAccessToken(token)

	return token, nil
}

// Authenticate starts a new Nest session from a Google OAuth access
// token: it asks the auth proxy for a JWT and presents that JWT to the
// session endpoint. When the proxy declines to mint a JWT the
// previously held session is returned unchanged; that is a defined
// fallback, not a failure.
func (c *Client) Authenticate(ctx context.Context, accessToken string) (*models.Session, error) {
	const op = "authenticate"

	form := url.Values{}
	form.Set("embed_google_oauth_access_token", "true")
	form.Set("expire_after", jwtExpireAfter)
	form.Set("google_oauth_access_token", accessToken)
	form.Set("policy_id", jwtPolicyID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	header.Set("User-Agent", userAgent)
	header.Set("Referer", c.env.Host)
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(ctx, http.MethodPost, c.jwtURL, header, []byte(form.Encode()), c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("authenticate", json.RawMessage(body))

	var auth models.JWTResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	if auth.JWT == "" {
		c.log.Warn().Msg("No JWT available, unable to start new session")
		return c.tokens.CurrentSession(), nil
	}

	return c.establishSession(ctx, auth.JWT)
}

func (c *Client) establishSession(ctx context.Context, jwt string) (*models.Session, error) {
	const op = "session"

	header := http.Header{}
	header.Set("Authorization", "Basic "+jwt)
	header.Set("Cookie", "G_ENABLED_IDPS=google; eu_cookie_accepted=1; viewer-volume=0.5; cztoken="+jwt)

	status, body, err := c.do(ctx, http.MethodGet, c.env.Host+"/session", header, nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("session", json.RawMessage(body))

	var session models.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	if session.Error != nil {
		c.log.Error().Interface("error", session.Error).Msg("Authentication error in session response")
	}

	c.tokens.ReplaceSession(&session)

	if u := session.URLs.TransportURL; u != "" {
		c.setTransportURL(u)
	}

	return &session, nil
}

// EnsureSession returns a live session, lazily running the minimal
// remainder of the auth chain: a valid session is returned as-is, a
// valid access token skips straight to session establishment, and
// otherwise the full chain runs. The chain is single-flight; concurrent
// callers wait rather than racing their own refresh.
func (c *Client) EnsureSession(ctx context.Context) (*models.Session, error) {
	if session, ok := c.tokens.Session(); ok {
		return session, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have completed the chain while we waited.
	if session, ok := c.tokens.Session(); ok {
		return session, nil
	}

	token, ok := c.tokens.AccessToken()
	if !ok {
		var err error

		token, err = c.GetAccessToken(ctx)
		if err != nil {
			return nil, err
		}
	}

	session, err := c.Authenticate(ctx, token.Token)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, fmt.Errorf("%w: no jwt minted and no previous session to fall back on", ErrAuthFailed)
	}

	return session, nil
}

// Reauthenticate drops both credential layers and runs the full chain.
// Used when the server independently rejects a session mid-cycle.
func (c *Client) Reauthenticate(ctx context.Context) (*models.Session, error) {
	c.tokens.Invalidate()

	return c.EnsureSession(ctx)
}
