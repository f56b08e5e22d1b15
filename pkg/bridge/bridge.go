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

// Package bridge orchestrates one Nest account session: it runs the
// startup sequence (auth chain, initial snapshot), keeps the object
// store current through the subscription loop, and republishes every
// change as a CloudEvent on NATS JetStream, into a JetStream KV mirror,
// and to in-process listeners.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/emberhome/nestlink/pkg/client"
	"github.com/emberhome/nestlink/pkg/config"
	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
	"github.com/emberhome/nestlink/pkg/store"
	"github.com/emberhome/nestlink/pkg/subscriber"
)

var errShutdownTimeout = errors.New("timed out waiting for background tasks to stop")

// Bridge owns the session for one configured account.
type Bridge struct {
	cfg      *config.Config
	log      logger.Logger
	client   *client.Client
	store    *store.Store
	clock    subscriber.Clock
	dispatch *Dispatcher

	nc     *nats.Conn
	events *EventPublisher
	mirror *ObjectMirror

	weatherMu sync.RWMutex
	weather   map[string]json.RawMessage

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option adjusts a Bridge at construction time.
type Option func(*Bridge)

// WithHTTPClient substitutes the HTTP transport, for tests.
func WithHTTPClient(httpClient client.HTTPClient) Option {
	return func(b *Bridge) {
		b.client = client.New(b.cfg, httpClient, b.log)
	}
}

// WithClock substitutes the clock driving backoff and the refresh tick.
func WithClock(clock subscriber.Clock) Option {
	return func(b *Bridge) {
		b.clock = clock
	}
}

// New creates a Bridge from a validated configuration.
func New(cfg *config.Config, log logger.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		log:      log,
		client:   client.New(cfg, nil, log),
		store:    store.New(log),
		clock:    subscriber.RealClock{},
		dispatch: NewDispatcher(),
		weather:  make(map[string]json.RawMessage),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// IsFatal reports whether a startup error means the configured
// credentials are permanently bad and the operator must reconfigure.
// Everything else (transport, timeout, vendor outage) is a retryable
// startup condition owned by the external lifecycle manager.
func IsFatal(err error) bool {
	return errors.Is(err, client.ErrBadCredentials)
}

// Start runs the startup sequence and launches the background tasks.
// It returns once the initial snapshot is loaded; the subscription loop
// and the periodic refresh keep running until Stop.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Events.Enabled || b.cfg.KVBucket != "" {
		if err := b.connectNATS(ctx); err != nil {
			return err
		}
	}

	launch, err := b.client.Launch(ctx)
	if err != nil {
		return fmt.Errorf("initial state fetch failed: %w", err)
	}

	changed := b.store.Merge(launch.UpdatedBuckets)

	b.log.Info().
		Int("objects", b.store.Len()).
		Int("structures", len(b.store.StructureNames())).
		Msg("Initial snapshot loaded")

	b.NotifyChanged(ctx, changed)

	// Background tasks outlive the startup context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	loop := subscriber.New(b.client, b.store, b, b.clock, b.log)

	b.wg.Add(2)

	go func() {
		defer b.wg.Done()
		loop.Run(runCtx)
	}()

	go func() {
		defer b.wg.Done()
		b.refreshLoop(runCtx)
	}()

	return nil
}

// Stop cancels the background tasks, waits for them to drain within
// ctx, and closes the NATS connection. The in-flight long-poll request
// aborts with the cancellation; a response racing it is discarded.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errShutdownTimeout
	}

	if b.nc != nil {
		b.nc.Close()
	}

	return nil
}

func (b *Bridge) connectNATS(ctx context.Context) error {
	nc, err := nats.Connect(b.cfg.NATS.URL, nats.Name("nestlink"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if b.cfg.Events.Enabled {
		b.events = NewEventPublisher(js, b.cfg.Events.StreamName)

		if err := b.events.EnsureStream(ctx, b.cfg.Events.Subjects); err != nil {
			nc.Close()

			return err
		}
	}

	if b.cfg.KVBucket != "" {
		b.mirror, err = NewObjectMirror(ctx, js, b.cfg.KVBucket)
		if err != nil {
			nc.Close()

			return err
		}
	}

	b.nc = nc

	return nil
}

// NotifyChanged fans one change notification per changed key out to the
// in-process dispatcher, the KV mirror and the event stream. It is the
// subscription loop's notifier.
func (b *Bridge) NotifyChanged(ctx context.Context, keys []string) {
	for _, key := range keys {
		bucket, ok := b.store.Get(key)
		if !ok {
			continue
		}

		b.dispatch.Notify(bucket)

		if b.mirror != nil {
			raw, err := json.Marshal(bucket)
			if err == nil {
				err = b.mirror.Put(ctx, key, raw)
			}

			if err != nil {
				b.log.Warn().Err(err).Str("object_key", key).Msg("Failed to mirror object to KV")
			}
		}

		if b.events != nil {
			if err := b.events.PublishObjectUpdated(ctx, b.eventData(&bucket)); err != nil {
				b.log.Warn().Err(err).Str("object_key", key).Msg("Failed to publish object update event")
			}
		}
	}
}

// eventData resolves a changed bucket against the derived indices so
// consumers get the structure, area and device context in the event
// itself.
func (b *Bridge) eventData(bucket *models.Bucket) models.ObjectUpdateEventData {
	data := models.ObjectUpdateEventData{
		ObjectKey:       bucket.ObjectKey,
		ObjectRevision:  bucket.ObjectRevision,
		ObjectTimestamp: bucket.ObjectTimestamp,
	}

	id := bucket.ObjectID()

	if bucket.TypePrefix() == "structure" {
		data.StructureID = id
	} else if structureID, ok := b.store.StructureOf(id); ok {
		data.StructureID = structureID
	}

	if data.StructureID != "" {
		if name, ok := b.store.StructureName(data.StructureID); ok {
			data.StructureName = name
		}
	}

	if area, ok := b.store.DeviceArea(id); ok {
		data.AreaName = area
	}

	if bucket.TypePrefix() == "device" {
		if info, ok := b.store.DeviceInfo(id); ok {
			data.DeviceInfo = &info
		}
	}

	return data
}

// refreshLoop periodically refreshes the weather for every structure
// with a known postal code.
func (b *Bridge) refreshLoop(ctx context.Context) {
	b.refreshWeather(ctx)

	ticker := b.clock.Ticker(time.Duration(b.cfg.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			b.refreshWeather(ctx)
		}
	}
}

func (b *Bridge) refreshWeather(ctx context.Context) {
	for structureID, postalCode := range b.store.PostalCodes() {
		conditions, err := b.client.Weather(ctx, postalCode)
		if err != nil {
			if ctx.Err() == nil {
				b.log.Warn().Err(err).Str("structure_id", structureID).Msg("Weather refresh failed")
			}

			continue
		}

		b.weatherMu.Lock()
		b.weather[structureID] = conditions
		b.weatherMu.Unlock()
	}
}

// WeatherFor returns the last fetched conditions for a structure.
func (b *Bridge) WeatherFor(structureID string) (json.RawMessage, bool) {
	b.weatherMu.RLock()
	defer b.weatherMu.RUnlock()

	conditions, ok := b.weather[structureID]

	return conditions, ok
}

// Store exposes the object store for external readers.
func (b *Bridge) Store() *store.Store {
	return b.store
}

// Client exposes the API client for imperative updates and the camera
// sidecar endpoints.
func (b *Bridge) Client() *client.Client {
	return b.client
}

// Subscribe registers an in-process listener for one object key.
func (b *Bridge) Subscribe(key string) (<-chan models.Bucket, func()) {
	return b.dispatch.Subscribe(key)
}
