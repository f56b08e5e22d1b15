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

package models

import "time"

// SessionExpiryLayout is the cookie-style expiry format the session
// endpoint returns, e.g. "Tue, 01-Mar-2022 23:15:55 GMT".
const SessionExpiryLayout = "Mon, 02-Jan-2006 15:04:05 MST"

// SessionURLs are the per-user service endpoints handed out at session
// establishment. TransportURL hosts the subscribe and put operations.
type SessionURLs struct {
	RubyAPIURL         string `json:"rubyapi_url"`
	CzfeURL            string `json:"czfe_url"`
	LogUploadURL       string `json:"log_upload_url"`
	TransportURL       string `json:"transport_url"`
	WeatherURL         string `json:"weather_url"`
	SupportURL         string `json:"support_url"`
	DirectTransportURL string `json:"direct_transport_url"`
}

// SessionLimits mirrors the account limits block of the session response.
type SessionLimits struct {
	ThermostatsPerStructure    int `json:"thermostats_per_structure"`
	Structures                 int `json:"structures"`
	SmokeDetectorsPerStructure int `json:"smoke_detectors_per_structure"`
	SmokeDetectors             int `json:"smoke_detectors"`
	Thermostats                int `json:"thermostats"`
}

// Session is the vendor session minted from a JWT. The access token is
// presented as a basic-auth credential on every subsequent API call.
// Fields whose wire names start with a digit carry explicit tags since
// they cannot be Go identifiers verbatim.
type Session struct {
	AccessToken       string                 `json:"access_token"`
	Email             string                 `json:"email"`
	ExpiresIn         string                 `json:"expires_in"`
	UserID            string                 `json:"userid"`
	IsSuperuser       bool                   `json:"is_superuser"`
	Language          string                 `json:"language"`
	Weave             map[string]string      `json:"weave"`
	User              string                 `json:"user"`
	IsStaff           bool                   `json:"is_staff"`
	Error             map[string]interface{} `json:"error"`
	URLs              SessionURLs            `json:"urls"`
	Limits            SessionLimits          `json:"limits"`
	TwoFAState        string                 `json:"2fa_state"`
	TwoFAEnabled      bool                   `json:"2fa_enabled"`
	TwoFAStateChanged string                 `json:"2fa_state_changed"`
}

// Expired reports whether the session is unusable at the given instant.
// A missing or unparseable expiry string counts as expired so a stale
// session can never be mistaken for a live one.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresIn == "" {
		return true
	}

	expiry, err := time.Parse(SessionExpiryLayout, s.ExpiresIn)
	if err != nil {
		return true
	}

	return !expiry.After(now)
}
