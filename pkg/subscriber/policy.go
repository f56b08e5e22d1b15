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

package subscriber

import (
	"errors"
	"time"

	"github.com/emberhome/nestlink/pkg/client"
)

// Backoff per failure class. Transport hiccups are expected under a
// day-long long-poll and retry eagerly; vendor-side outages get a
// cooldown so a degraded backend is not hammered; unclassified failures
// get the most conservative delay because their recurrence pattern is
// unknown.
const (
	serviceUnavailableDelay = 2 * time.Minute
	protocolErrorDelay      = time.Minute
	unclassifiedDelay       = 5 * time.Minute
)

type failureClass int

const (
	failureTransport failureClass = iota
	failureNotAuthenticated
	failureServiceUnavailable
	failureProtocol
	failureUnclassified
)

// retryAction is what one failed long-poll cycle does before re-arming.
type retryAction struct {
	class  failureClass
	delay  time.Duration
	reauth bool
}

// classify maps a subscribe failure onto its retry action, checked in
// priority order: transport first, then the vendor's well-known
// statuses, then recognized protocol errors, then everything else.
func classify(err error) retryAction {
	switch {
	case client.IsTransportError(err):
		return retryAction{class: failureTransport}
	case errors.Is(err, client.ErrNotAuthenticated):
		return retryAction{class: failureNotAuthenticated, reauth: true}
	case errors.Is(err, client.ErrServiceUnavailable):
		return retryAction{class: failureServiceUnavailable, delay: serviceUnavailableDelay}
	case isProtocolError(err):
		return retryAction{class: failureProtocol, delay: protocolErrorDelay}
	default:
		return retryAction{class: failureUnclassified, delay: unclassifiedDelay}
	}
}

func isProtocolError(err error) bool {
	var protoErr *client.ProtocolError

	return errors.As(err, &protoErr)
}
