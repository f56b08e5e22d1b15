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

// Package subscriber runs the long-poll resubscription loop: one
// blocking subscribe request at a time, scoped by the store's current
// revision cursor, merged back on success and re-armed after every
// outcome with a per-failure-class backoff. The loop only terminates
// through context cancellation.
package subscriber

import (
	"context"

	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

// Loop is the resubscription loop for one session.
type Loop struct {
	client   NestClient
	store    ObjectStore
	notifier Notifier
	clock    Clock
	log      logger.Logger
}

// New creates a Loop. A nil clock selects the real one; a nil notifier
// disables change notifications.
func New(nestClient NestClient, objectStore ObjectStore, notifier Notifier, clock Clock, log logger.Logger) *Loop {
	if clock == nil {
		clock = RealClock{}
	}

	return &Loop{
		client:   nestClient,
		store:    objectStore,
		notifier: notifier,
		clock:    clock,
		log:      log,
	}
}

// Run blocks until ctx is canceled. Exactly one subscribe request is in
// flight at any time; every outcome re-arms the next cycle. No error
// escapes: failures are classified and absorbed per the retry policy.
func (l *Loop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			l.log.Debug().Msg("Subscriber stopped")
			return
		}

		resp, err := l.client.Subscribe(ctx, l.store.Cursor())

		// A response racing shutdown is discarded: merge after cancel
		// must not happen.
		if ctx.Err() != nil {
			l.log.Debug().Msg("Subscriber stopped")
			return
		}

		if err == nil {
			l.apply(ctx, resp.Objects)
			continue
		}

		l.handleFailure(ctx, err)
	}
}

func (l *Loop) apply(ctx context.Context, objects []models.Bucket) {
	changed := l.store.Merge(objects)

	l.log.Debug().
		Int("objects", len(objects)).
		Int("changed", len(changed)).
		Msg("Merged subscribe delta")

	if len(changed) > 0 && l.notifier != nil {
		l.notifier.NotifyChanged(ctx, changed)
	}
}

func (l *Loop) handleFailure(ctx context.Context, err error) {
	action := classify(err)

	switch action.class {
	case failureTransport:
		l.log.Debug().Err(err).Msg("Subscriber: transport interrupted, resubscribing")
	case failureNotAuthenticated:
		l.log.Debug().Err(err).Msg("Subscriber: 401, re-running auth chain")
	case failureServiceUnavailable:
		l.log.Warn().Err(err).Dur("pause", action.delay).Msg("Subscriber: Nest service unavailable, pausing updates")
	case failureProtocol:
		l.log.Error().Err(err).Dur("pause", action.delay).Msg("Subscriber: unexpected Nest response, pausing updates")
	case failureUnclassified:
		l.log.Error().Err(err).Dur("pause", action.delay).Msg("Subscriber: unclassified failure, pausing updates")
	}

	if action.reauth {
		if _, authErr := l.client.Reauthenticate(ctx); authErr != nil && ctx.Err() == nil {
			// The next cycle will retry the chain; absorb the failure
			// with the conservative delay so bad backends are not
			// hammered with auth attempts.
			l.log.Error().Err(authErr).Msg("Subscriber: re-authentication failed")
			action.delay = unclassifiedDelay
		}
	}

	if action.delay > 0 {
		select {
		case <-ctx.Done():
		case <-l.clock.After(action.delay):
		}
	}
}
