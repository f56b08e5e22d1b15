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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

// newTestClient returns a Client with every endpoint pointed at the
// given test server.
func newTestClient(srvURL string) *Client {
	return &Client{
		httpClient:   &http.Client{},
		log:          logger.NewTestLogger(),
		env:          models.Environment{Name: "test", ClientID: "test-client", Host: srvURL},
		refreshToken: "refresh-token",
		tokens:       NewTokenStore(),
		archiver:     NewArchiver(false, "", logger.NewTestLogger()),
		timeout:      5 * time.Second,
		tokenURL:     srvURL + "/oauth2/token",
		jwtURL:       srvURL + "/v1/issue_jwt",
		cameraURL:    srvURL,
		weather:      srvURL + "/weather/v1",
	}
}

func sessionExpiry(d time.Duration) string {
	return time.Now().Add(d).UTC().Format(models.SessionExpiryLayout)
}

func testSession(transportURL string) *models.Session {
	return &models.Session{
		AccessToken: "nest-token",
		UserID:      "user-1",
		ExpiresIn:   sessionExpiry(time.Hour),
		URLs:        models.SessionURLs{TransportURL: transportURL},
	}
}

func seedSession(c *Client, srvURL string) *models.Session {
	session := testSession(srvURL)
	c.tokens.ReplaceSession(session)
	c.setTransportURL(srvURL)

	return session
}

func TestGetAccessTokenFromRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-token", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "test-client", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "google-token", "expires_in": 3600, "token_type": "Bearer"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	token, err := c.GetAccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "google-token", token.Token)
	assert.False(t, token.Expired(time.Now()))
	assert.True(t, token.Expired(time.Now().Add(2*time.Hour)))

	cached, ok := c.tokens.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "google-token", cached.Token)
}

func TestGetAccessTokenGrantRejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   error
		wantIsBad bool
	}{
		{
			name:      "invalid grant is permanent",
			body:      `{"error": "invalid_grant"}`,
			wantErr:   ErrBadCredentials,
			wantIsBad: true,
		},
		{
			name:      "other provider errors are generic",
			body:      `{"error": "server_error"}`,
			wantErr:   ErrAuthFailed,
			wantIsBad: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)

			_, err := c.GetAccessToken(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantIsBad, errors.Is(err, ErrBadCredentials))
		})
	}
}

func TestGetAccessTokenFromCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "SID=abc; HSID=def", r.Header.Get("Cookie"))
		assert.Equal(t, "https://accounts.google.com/o/oauth2/iframe", r.Header.Get("Referer"))
		assert.Equal(t, "XmlHttpRequest", r.Header.Get("X-Requested-With"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "cookie-token", "expires_in": 1800}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.refreshToken = ""
	c.issueToken = srv.URL + "/o/oauth2/iframerpc?action=issueToken"
	c.cookies = "SID=abc; HSID=def"

	token, err := c.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", token.Token)
}

func TestGetAccessTokenNoCredentials(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	c.refreshToken = ""

	_, err := c.GetAccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	defer srv.Close()

	mux.HandleFunc("/v1/issue_jwt", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer google-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("embed_google_oauth_access_token"))
		assert.Equal(t, "3600s", r.PostForm.Get("expire_after"))
		assert.Equal(t, "google-token", r.PostForm.Get("google_oauth_access_token"))
		assert.Equal(t, "authproxy-oauth-policy", r.PostForm.Get("policy_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jwt": "minted-jwt"}`))
	})

	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Basic minted-jwt", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Cookie"), "cztoken=minted-jwt")
		assert.Contains(t, r.Header.Get("Cookie"), "G_ENABLED_IDPS=google")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "nest-token",
			"userid": "user-1",
			"expires_in": "` + sessionExpiry(time.Hour) + `",
			"urls": {"transport_url": "https://transport.example"}
		}`))
	})

	c := newTestClient(srv.URL)

	session, err := c.Authenticate(context.Background(), "google-token")
	require.NoError(t, err)

	assert.Equal(t, "nest-token", session.AccessToken)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "https://transport.example", c.TransportURL())

	held, ok := c.tokens.Session()
	require.True(t, ok)
	assert.Equal(t, session, held)
}

func TestAuthenticateNoJWTKeepsPreviousSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claims": {"policyId": "authproxy-oauth-policy"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	previous := seedSession(c, srv.URL)

	session, err := c.Authenticate(context.Background(), "google-token")
	require.NoError(t, err)
	assert.Same(t, previous, session)
}

func TestAuthenticateNoJWTNoPreviousSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	session, err := c.Authenticate(context.Background(), "google-token")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAuthenticateSessionNotJSON(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	defer srv.Close()

	mux.HandleFunc("/v1/issue_jwt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jwt": "minted-jwt"}`))
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>upstream blew up</html>"))
	})

	c := newTestClient(srv.URL)

	_, err := c.Authenticate(context.Background(), "google-token")
	require.Error(t, err)

	var protoErr *ProtocolError

	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusServiceUnavailable, protoErr.Status)
	assert.Contains(t, protoErr.Body, "upstream blew up")
}

func TestEnsureSessionRunsMinimalChain(t *testing.T) {
	var tokenCalls, jwtCalls, sessionCalls int

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	defer srv.Close()

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "google-token", "expires_in": 3600}`))
	})
	mux.HandleFunc("/v1/issue_jwt", func(w http.ResponseWriter, _ *http.Request) {
		jwtCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jwt": "minted-jwt"}`))
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, _ *http.Request) {
		sessionCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "nest-token", "userid": "user-1", "expires_in": "` + sessionExpiry(time.Hour) + `"}`))
	})

	c := newTestClient(srv.URL)

	// A live access token with no session must skip the token endpoint.
	c.tokens.ReplaceAccessToken(&models.AccessToken{Token: "google-token", Expiry: time.Now().Add(time.Hour)})

	session, err := c.EnsureSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "nest-token", session.AccessToken)

	assert.Equal(t, 0, tokenCalls)
	assert.Equal(t, 1, jwtCalls)
	assert.Equal(t, 1, sessionCalls)

	// A live session short-circuits the whole chain.
	_, err = c.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, jwtCalls)
	assert.Equal(t, 1, sessionCalls)
}

func TestEnsureSessionRunsFullChainWhenEmpty(t *testing.T) {
	var tokenCalls, jwtCalls, sessionCalls int

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	defer srv.Close()

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "google-token", "expires_in": 3600}`))
	})
	mux.HandleFunc("/v1/issue_jwt", func(w http.ResponseWriter, _ *http.Request) {
		jwtCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jwt": "minted-jwt"}`))
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, _ *http.Request) {
		sessionCalls++

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "nest-token", "userid": "user-1", "expires_in": "` + sessionExpiry(time.Hour) + `"}`))
	})

	c := newTestClient(srv.URL)

	_, err := c.EnsureSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, 1, jwtCalls)
	assert.Equal(t, 1, sessionCalls)

	// Reauthenticate drops both layers and runs everything again.
	_, err = c.Reauthenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, tokenCalls)
	assert.Equal(t, 2, jwtCalls)
	assert.Equal(t, 2, sessionCalls)
}
