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
	"fmt"
	"io"
	"net"
)

var (
	// ErrBadCredentials means the provider explicitly rejected the
	// configured grant. Permanent; never retried automatically.
	ErrBadCredentials = errors.New("provider rejected credentials")

	// ErrAuthFailed covers provider-reported auth errors other than a
	// rejected grant.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoCredentials means neither a refresh token nor an issue
	// token/cookie pair was configured.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrNotAuthenticated means the server rejected the session (401).
	// Recoverable by re-running the auth chain.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrServiceUnavailable means the vendor backend reported a bad
	// gateway or gateway timeout. Recoverable after a cooldown.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ProtocolError is a recognized-but-unexpected response shape: wrong
// content type, undecodable body, or an unanticipated status. The status
// and raw body are kept for operator diagnostics since this class can
// indicate an API contract change.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: unexpected response (status %d): %s", e.Op, e.Status, e.Body)
}

func newProtocolError(op string, status int, body []byte) *ProtocolError {
	const maxBody = 2048

	if len(body) > maxBody {
		body = body[:maxBody]
	}

	return &ProtocolError{Op: op, Status: status, Body: string(body)}
}

// IsTransportError reports whether err is a connection-level failure:
// peer closed the connection, the client timed out waiting, or the host
// could not be reached. These retry immediately under a long-poll
// design. Context cancellation is deliberately not a transport error.
func IsTransportError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
