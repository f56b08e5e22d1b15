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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/weather/v1", r.URL.Path)
		assert.Equal(t, "98039", r.URL.Query().Get("query"))

		// No session cookie or Basic header: the endpoint is public.
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Cookie"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"98039": {"current": {"temp_c": 18.5, "condition": "Cloudy"}}}`))
	}))

	defer srv.Close()

	c := newTestClient(srv.URL)

	conditions, err := c.Weather(context.Background(), "98039")
	require.NoError(t, err)
	assert.Contains(t, string(conditions), "Cloudy")
}

func TestWeatherUnknownPostalCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))

	defer srv.Close()

	c := newTestClient(srv.URL)

	conditions, err := c.Weather(context.Background(), "00000")
	require.NoError(t, err)
	assert.Nil(t, conditions)
}

func TestWeatherNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))

	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Weather(context.Background(), "98039")

	var protoErr *ProtocolError

	require.ErrorAs(t, err, &protoErr)
	assert.Contains(t, protoErr.Body, "rate limited")
}
