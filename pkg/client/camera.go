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

	"github.com/emberhome/nestlink/pkg/models"
)

// Cameras authenticate with a user_token cookie carrying the session
// access token rather than the Basic header the transport host uses.
func cameraHeader(session *models.Session) http.Header {
	header := http.Header{}
	header.Set("Cookie", "user_token="+session.AccessToken)

	return header
}

// CameraProperties fetches the property map of one camera.
func (c *Client) CameraProperties(ctx context.Context, uuid string) (json.RawMessage, error) {
	const op = "camera properties"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	propsURL := fmt.Sprintf("%s/api/cameras.get_with_properties?uuid=%s", c.cameraURL, url.QueryEscape(uuid))

	status, body, err := c.do(ctx, http.MethodGet, propsURL, cameraHeader(session), nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save("properties_"+uuid, json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, newProtocolError(op, status, body)
	}

	return body, nil
}

// CameraSnapshot fetches a current JPEG frame from one camera.
func (c *Client) CameraSnapshot(ctx context.Context, uuid string) ([]byte, error) {
	const op = "camera snapshot"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	snapURL := fmt.Sprintf("https://%s/get_image?uuid=%s", c.nexusHost, url.QueryEscape(uuid))

	status, body, err := c.do(ctx, http.MethodGet, snapURL, cameraHeader(session), nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, newProtocolError(op, status, body)
	}

	return body, nil
}

// SetCameraProperty writes one camera property and returns the accepted
// state.
func (c *Client) SetCameraProperty(ctx context.Context, uuid, key, value string) (json.RawMessage, error) {
	const op = "set camera property"

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("uuid", uuid)
	query.Set(key, value)

	setURL := fmt.Sprintf("%s/api/dropcams.set_properties?%s", c.cameraURL, query.Encode())

	status, body, err := c.do(ctx, http.MethodPost, setURL, cameraHeader(session), nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.archiver.Save(fmt.Sprintf("set_property_%s_%s", uuid, key), json.RawMessage(body))

	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, newProtocolError(op, status, body)
	}

	return body, nil
}
