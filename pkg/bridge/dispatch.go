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
	"sync"

	"github.com/emberhome/nestlink/pkg/models"
)

// subscriberBuffer is how many pending changes one in-process listener
// can lag behind before deliveries drop.
const subscriberBuffer = 16

// Dispatcher fans object changes out to in-process listeners registered
// per object key. Delivery is non-blocking: a listener that stops
// draining its channel loses updates instead of stalling the
// subscription loop.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan models.Bucket
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string]map[int]chan models.Bucket)}
}

// Subscribe registers a listener for one object key and returns the
// delivery channel plus an unsubscribe function. Unsubscribe closes the
// channel.
func (d *Dispatcher) Subscribe(key string) (<-chan models.Bucket, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++

	ch := make(chan models.Bucket, subscriberBuffer)

	if d.subs[key] == nil {
		d.subs[key] = make(map[int]chan models.Bucket)
	}

	d.subs[key][id] = ch

	unsubscribe := func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if sub, ok := d.subs[key][id]; ok {
			delete(d.subs[key], id)
			close(sub)
		}
	}

	return ch, unsubscribe
}

// Notify delivers one changed bucket to every listener of its key.
func (d *Dispatcher) Notify(bucket models.Bucket) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ch := range d.subs[bucket.ObjectKey] {
		select {
		case ch <- bucket:
		default:
		}
	}
}
