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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhome/nestlink/pkg/models"
)

func TestTokenStoreEmpty(t *testing.T) {
	store := NewTokenStore()

	_, ok := store.AccessToken()
	assert.False(t, ok)

	_, ok = store.Session()
	assert.False(t, ok)

	assert.Nil(t, store.CurrentSession())
}

func TestTokenStoreAccessTokenExpiry(t *testing.T) {
	store := NewTokenStore()

	store.ReplaceAccessToken(&models.AccessToken{
		Token:  "live",
		Expiry: time.Now().Add(time.Hour),
	})

	token, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "live", token.Token)

	store.ReplaceAccessToken(&models.AccessToken{
		Token:  "stale",
		Expiry: time.Now().Add(-time.Minute),
	})

	_, ok = store.AccessToken()
	assert.False(t, ok)
}

func TestTokenStoreSessionExpiry(t *testing.T) {
	store := NewTokenStore()

	live := testSession("")
	store.ReplaceSession(live)

	session, ok := store.Session()
	require.True(t, ok)
	assert.Same(t, live, session)

	stale := testSession("")
	stale.ExpiresIn = sessionExpiry(-time.Minute)
	store.ReplaceSession(stale)

	_, ok = store.Session()
	assert.False(t, ok)

	// CurrentSession hands back whatever is held, expired or not,
	// so a failed JWT mint can fall back to it.
	assert.Same(t, stale, store.CurrentSession())
}

func TestTokenStoreInvalidate(t *testing.T) {
	store := NewTokenStore()

	store.ReplaceAccessToken(&models.AccessToken{Token: "live", Expiry: time.Now().Add(time.Hour)})
	store.ReplaceSession(testSession(""))

	store.Invalidate()

	_, ok := store.AccessToken()
	assert.False(t, ok)

	_, ok = store.Session()
	assert.False(t, ok)

	assert.Nil(t, store.CurrentSession())
}
