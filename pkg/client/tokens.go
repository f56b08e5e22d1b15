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
	"sync"
	"time"

	"github.com/emberhome/nestlink/pkg/models"
)

// TokenStore holds the two credential layers: the Google OAuth access
// token and the Nest session minted from it. Credentials are replaced
// whole, never mutated in place, and getters only return values that
// are still live.
type TokenStore struct {
	mu      sync.RWMutex
	access  *models.AccessToken
	session *models.Session
}

// NewTokenStore returns an empty store; both layers start expired.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// AccessToken returns the current access token, or false when none is
// held or the held one has expired.
func (s *TokenStore) AccessToken() (*models.AccessToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.access.Expired(time.Now()) {
		return nil, false
	}

	return s.access, true
}

// Session returns the current session, or false when none is held or
// the held one has expired.
func (s *TokenStore) Session() (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session.Expired(time.Now()) {
		return nil, false
	}

	return s.session, true
}

// CurrentSession returns the held session regardless of expiry. The
// auth chain uses it as the fallback when the proxy declines to mint a
// fresh JWT.
func (s *TokenStore) CurrentSession() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session
}

// ReplaceAccessToken atomically swaps in a new access token.
func (s *TokenStore) ReplaceAccessToken(token *models.AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = token
}

// ReplaceSession atomically swaps in a new session.
func (s *TokenStore) ReplaceSession(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
}

// Invalidate drops both credential layers, forcing the next
// EnsureSession to run the full chain.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = nil
	s.session = nil
}
