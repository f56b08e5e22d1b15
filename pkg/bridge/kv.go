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
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// ObjectMirror mirrors raw bucket JSON into a JetStream KV bucket so
// out-of-process consumers can read and watch the object graph without
// talking to the vendor API.
type ObjectMirror struct {
	kv jetstream.KeyValue
}

// NewObjectMirror creates (or opens) the KV bucket.
func NewObjectMirror(ctx context.Context, js jetstream.JetStream, bucket string) (*ObjectMirror, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
	}

	return &ObjectMirror{kv: kv}, nil
}

// Put writes one object's raw JSON under its object key. Object keys
// like "device.123" are already valid KV keys.
func (m *ObjectMirror) Put(ctx context.Context, key string, value []byte) error {
	if _, err := m.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

// Get reads one object's raw JSON back.
func (m *ObjectMirror) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	entry, err := m.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}
