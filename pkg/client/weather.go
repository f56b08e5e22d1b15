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
)

// Weather fetches current conditions for a postal code. The endpoint is
// unauthenticated and keyed by the query itself: the response maps the
// postal code back to its conditions object, which is what's returned.
func (c *Client) Weather(ctx context.Context, postalCode string) (json.RawMessage, error) {
	const op = "weather"

	weatherQueryURL := fmt.Sprintf("%s?query=%s", c.weather, url.QueryEscape(postalCode))

	status, body, err := c.do(ctx, http.MethodGet, weatherQueryURL, nil, nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("weather_"+postalCode, json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newProtocolError(op, status, body)
	}

	return result[postalCode], nil
}
