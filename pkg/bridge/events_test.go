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
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhome/nestlink/pkg/config"
	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	return srv
}

func TestBridgePublishesEventsAndMirrorsKV(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jsServer := runJetStreamServer(t)
	t.Cleanup(jsServer.Shutdown)

	cfg := &config.Config{
		RefreshToken: "refresh-1",
		KVBucket:     "nest-objects",
		NATS:         models.NATSConfig{URL: jsServer.ClientURL()},
		Events:       models.EventsConfig{Enabled: true},
	}
	require.NoError(t, cfg.Validate())

	b := New(cfg, logger.NewTestLogger())
	require.NoError(t, b.connectNATS(ctx))

	t.Cleanup(b.nc.Close)

	changed := b.store.Merge([]models.Bucket{
		{ObjectKey: "structure.s1", ObjectRevision: 1, ObjectTimestamp: 100,
			Value: json.RawMessage(`{"name": "Home", "time_zone": "UTC"}`)},
		{ObjectKey: "where.s1", ObjectRevision: 1, ObjectTimestamp: 100,
			Value: json.RawMessage(`{"wheres": [{"where_id": "w1", "name": "Hallway"}]}`)},
		{ObjectKey: "link.d1", ObjectRevision: 1, ObjectTimestamp: 100,
			Value: json.RawMessage(`{"structure": "structure.s1"}`)},
		{ObjectKey: "device.d1", ObjectRevision: 4, ObjectTimestamp: 100,
			Value: json.RawMessage(`{"where_id": "w1", "model_version": "3.4", "current_version": "6.2"}`)},
	})
	require.Len(t, changed, 4)

	b.NotifyChanged(ctx, changed)

	nc, err := nats.Connect(jsServer.ClientURL())
	require.NoError(t, err)

	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Events.StreamName, jetstream.ConsumerConfig{
		Durable:       "verify",
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: eventSubjectObject,
	})
	require.NoError(t, err)

	batch, err := consumer.Fetch(4, jetstream.FetchMaxWait(5*time.Second))
	require.NoError(t, err)

	events := make(map[string]models.ObjectUpdateEventData)

	for msg := range batch.Messages() {
		var event models.CloudEvent

		require.NoError(t, json.Unmarshal(msg.Data(), &event))
		assert.Equal(t, "1.0", event.SpecVersion)
		assert.Equal(t, eventTypeObject, event.Type)
		assert.Equal(t, eventSource, event.Source)
		assert.NotEmpty(t, event.ID)

		var data models.ObjectUpdateEventData

		raw, marshalErr := json.Marshal(event.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(raw, &data))

		events[data.ObjectKey] = data

		require.NoError(t, msg.Ack())
	}

	require.Len(t, events, 4)

	device := events["device.d1"]
	assert.Equal(t, int64(4), device.ObjectRevision)
	assert.Equal(t, "s1", device.StructureID)
	assert.Equal(t, "Home", device.StructureName)
	assert.Equal(t, "Hallway", device.AreaName)
	require.NotNil(t, device.DeviceInfo)
	assert.Equal(t, "3.4", device.DeviceInfo.ModelVersion)

	structure := events["structure.s1"]
	assert.Equal(t, "s1", structure.StructureID)
	assert.Equal(t, "Home", structure.StructureName)

	// The KV mirror holds the raw bucket JSON under its object key.
	value, found, err := b.mirror.Get(ctx, "device.d1")
	require.NoError(t, err)
	require.True(t, found)

	var mirrored models.Bucket

	require.NoError(t, json.Unmarshal(value, &mirrored))
	assert.Equal(t, "device.d1", mirrored.ObjectKey)
	assert.Equal(t, int64(4), mirrored.ObjectRevision)
}
