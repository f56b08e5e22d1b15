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

// Package models defines the wire and domain types shared across nestlink.
package models

import "time"

// GoogleAuthResponse is the Google OAuth token endpoint response. The
// error fields are populated instead of the token fields when the grant
// is rejected.
type GoogleAuthResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	IDToken          string `json:"id_token"`
	LoginHint        string `json:"login_hint"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AccessToken is a Google OAuth access token with its computed expiry
// (issue time plus the server-declared TTL). A zero expiry counts as
// expired; tokens are never assumed valid by omission.
type AccessToken struct {
	Token  string
	Expiry time.Time
}

// Expired reports whether the token is unusable at the given instant.
func (t *AccessToken) Expired(now time.Time) bool {
	if t == nil || t.Token == "" || t.Expiry.IsZero() {
		return true
	}

	return !t.Expiry.After(now)
}

// JWTClaims carries the claim set echoed back by the auth proxy.
type JWTClaims struct {
	Subject             interface{} `json:"subject"`
	ExpirationTime      string      `json:"expirationTime"`
	PolicyID            string      `json:"policyId"`
	StructureConstraint string      `json:"structureConstraint"`
}

// JWTResponse is the auth proxy issue_jwt response. JWT is empty when
// the proxy declines to mint one.
type JWTResponse struct {
	JWT    string                 `json:"jwt"`
	Claims JWTClaims              `json:"claims"`
	Error  map[string]interface{} `json:"error"`
}
