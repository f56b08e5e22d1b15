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

import "time"

const (
	// tokenURL is the Google OAuth endpoint for refresh-token grants.
	tokenURL = "https://oauth2.googleapis.com/token"

	// jwtURL mints a Nest JWT from a Google OAuth access token.
	jwtURL = "https://nestauthproxyservice-pa.googleapis.com/v1/issue_jwt"

	// cameraAPIURL serves camera property reads and writes.
	cameraAPIURL = "https://webapi.camera.home.nest.com"

	// defaultNexusHost serves camera image endpoints; some accounts are
	// routed to region-specific hosts.
	defaultNexusHost = "nexusapi-us1.camera.home.nest.com"

	// weatherURL is the unauthenticated weather lookup.
	weatherURL = "https://apps-weather.nest.com/weather/v1"

	// userAgent mirrors the browser identity the vendor web app uses;
	// the auth endpoints reject unfamiliar agents.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/77.0.3865.120 Safari/537.36"

	// oauthReferer accompanies issue-token requests.
	oauthReferer = "https://accounts.google.com/o/oauth2/iframe"

	// protocolVersion is the X-nl-protocol-version header value.
	protocolVersion = "1"

	// subscribeTimeout is the long-poll client timeout. The server holds
	// the connection until new data or its own internal timeout, so this
	// is deliberately a day, not a request timeout.
	subscribeTimeout = 24 * time.Hour

	// jwtExpireAfter is the lifetime requested for minted JWTs.
	jwtExpireAfter = "3600s"

	// jwtPolicyID identifies the auth-proxy policy for JWT minting.
	jwtPolicyID = "authproxy-oauth-policy"
)

// knownBucketTypes is the set of record types declared in the snapshot
// request. The server only returns buckets of declared types.
var knownBucketTypes = []string{
	"buckets",
	"delayed_topaz",
	"demand_response",
	"device",
	"device_alert_dialog",
	"geofence_info",
	"kryptonite",
	"link",
	"message",
	"message_center",
	"metadata",
	"occupancy",
	"quartz",
	"safety",
	"rcs_settings",
	"safety_summary",
	"schedule",
	"shared",
	"structure",
	"structure_history",
	"structure_metadata",
	"topaz",
	"topaz_resource",
	"track",
	"trip",
	"tuneups",
	"user",
	"user_alert_dialog",
	"user_settings",
	"where",
	"widget_track",
}
