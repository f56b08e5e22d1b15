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

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/emberhome/nestlink/pkg/models"
)

const (
	eventSource        = "nestlink/bridge"
	eventTypeObject    = "com.emberhome.nestlink.object.updated"
	eventSubjectObject = "events.nest.object"
)

// EventPublisher publishes CloudEvents to a NATS JetStream stream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
}

// NewEventPublisher creates an EventPublisher for the named stream.
func NewEventPublisher(js jetstream.JetStream, streamName string) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
	}
}

// EnsureStream creates or updates the stream so the event subjects have
// somewhere to land before the first publish.
func (p *EventPublisher) EnsureStream(ctx context.Context, subjects []string) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     p.stream,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", p.stream, err)
	}

	return nil
}

// PublishObjectUpdated publishes one object-change event.
func (p *EventPublisher) PublishObjectUpdated(ctx context.Context, data models.ObjectUpdateEventData) error {
	now := time.Now()

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypeObject,
		DataContentType: "application/json",
		Subject:         eventSubjectObject,
		Time:            &now,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal object update event: %w", err)
	}

	if _, err := p.js.Publish(ctx, event.Subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish object update event: %w", err)
	}

	return nil
}
