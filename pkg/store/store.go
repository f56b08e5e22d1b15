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

// Package store keeps the revisioned object map for one Nest account
// together with the derived lookup indices external consumers read.
// Merge applies snapshot and long-poll batches under a
// strictly-greater-revision guard, so duplicate delivery never regresses
// state, and every index is consistent with the latest merged record
// before Merge returns.
package store

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/emberhome/nestlink/pkg/logger"
	"github.com/emberhome/nestlink/pkg/models"
)

// maxOwnershipHops bounds the swarm chain walk. The vendor model is at
// most sensor -> thermostat -> structure.
const maxOwnershipHops = 4

// indexer updates the derived indices for one bucket type. Indexers run
// under the store's write lock.
type indexer func(s *Store, b *models.Bucket) error

// indexers routes a bucket's type prefix to its index rule. Prefixes
// not present here are stored without typed parsing; unknown types must
// never abort a merge (forward compatibility with new server types).
var indexers = map[string]indexer{
	"structure":    indexStructure,
	"device":       indexDevice,
	"link":         indexLink,
	"rcs_settings": indexRcsSettings,
	"kryptonite":   indexKryptonite,
	"where":        indexWhere,
}

// Store is the shared object store for one account.
type Store struct {
	mu  sync.RWMutex
	log logger.Logger

	objects map[string]models.Bucket

	// Derived indices, recomputed incrementally on merge.
	structureNames   map[string]string            // structure id -> name
	timeZones        map[string]string            // structure id -> time zone
	postalCodes      map[string]string            // structure id -> postal code
	areas            map[string]string            // where id -> area name
	thermostats      map[string]string            // device id -> where id
	deviceInfo       map[string]models.DeviceInfo // device id -> hw/sw info
	sensors          map[string]string            // kryptonite id -> where id
	deviceStructures map[string]string            // device id -> structure id (via link)
	sensorParents    map[string]string            // sensor id -> thermostat id (via rcs_settings)
}

// New returns an empty store.
func New(log logger.Logger) *Store {
	return &Store{
		log:              log,
		objects:          make(map[string]models.Bucket),
		structureNames:   make(map[string]string),
		timeZones:        make(map[string]string),
		postalCodes:      make(map[string]string),
		areas:            make(map[string]string),
		thermostats:      make(map[string]string),
		deviceInfo:       make(map[string]models.DeviceInfo),
		sensors:          make(map[string]string),
		deviceStructures: make(map[string]string),
		sensorParents:    make(map[string]string),
	}
}

// Merge folds a batch of buckets into the store and returns the keys
// that actually changed, in batch order. A bucket whose revision is not
// strictly greater than the stored one is dropped silently: idempotent
// re-delivery leaves both the store and every derived index untouched.
// Within one batch, entries apply in list order under the same guard.
func (s *Store) Merge(buckets []models.Bucket) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make([]string, 0, len(buckets))

	for i := range buckets {
		b := buckets[i]

		if current, ok := s.objects[b.ObjectKey]; ok && b.ObjectRevision <= current.ObjectRevision {
			continue
		}

		s.objects[b.ObjectKey] = b

		if index, ok := indexers[b.TypePrefix()]; ok {
			if err := index(s, &b); err != nil {
				s.log.Warn().Err(err).Str("object_key", b.ObjectKey).Msg("Failed to index bucket value")
			}
		}

		changed = append(changed, b.ObjectKey)
	}

	return changed
}

// Cursor returns the (key, revision, timestamp) triple of every tracked
// object, sorted by key. The subscribe request scopes itself with this
// so the server only returns newer revisions.
func (s *Store) Cursor() []models.CursorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor := make([]models.CursorEntry, 0, len(s.objects))

	for _, b := range s.objects {
		cursor = append(cursor, models.CursorEntry{
			ObjectKey:       b.ObjectKey,
			ObjectRevision:  b.ObjectRevision,
			ObjectTimestamp: b.ObjectTimestamp,
		})
	}

	sort.Slice(cursor, func(i, j int) bool { return cursor[i].ObjectKey < cursor[j].ObjectKey })

	return cursor
}

// Get returns the stored bucket for an object key.
func (s *Store) Get(key string) (models.Bucket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.objects[key]

	return b, ok
}

// Len returns the number of tracked objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}

// Keys returns every tracked object key with the given type prefix, or
// all keys when prefix is empty.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))

	for key, b := range s.objects {
		if prefix == "" || b.TypePrefix() == prefix {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}

// StructureName resolves a structure id to its display name.
func (s *Store) StructureName(structureID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.structureNames[structureID]

	return name, ok
}

// StructureNames returns a copy of the structure-id -> name index.
func (s *Store) StructureNames() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyMap(s.structureNames)
}

// TimeZone resolves a structure id to its configured time zone.
func (s *Store) TimeZone(structureID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tz, ok := s.timeZones[structureID]

	return tz, ok
}

// PostalCodes returns a copy of the structure-id -> postal-code index.
func (s *Store) PostalCodes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyMap(s.postalCodes)
}

// AreaNames returns a copy of the where-id -> area-name index.
func (s *Store) AreaNames() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyMap(s.areas)
}

// AreaName resolves a where id to its display name.
func (s *Store) AreaName(whereID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.areas[whereID]

	return name, ok
}

// DeviceArea resolves a thermostat or temperature sensor id to the name
// of the area it is placed in.
func (s *Store) DeviceArea(deviceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	whereID, ok := s.thermostats[deviceID]
	if !ok {
		whereID, ok = s.sensors[deviceID]
	}

	if !ok {
		return "", false
	}

	name, ok := s.areas[whereID]

	return name, ok
}

// DeviceInfo returns the hardware/software description of a thermostat.
func (s *Store) DeviceInfo(deviceID string) (models.DeviceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.deviceInfo[deviceID]

	return info, ok
}

// SwarmParent resolves a remote sensor id to the thermostat that owns
// it.
func (s *Store) SwarmParent(sensorID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, ok := s.sensorParents[sensorID]

	return parent, ok
}

// StructureOf walks the ownership chain of a device or sensor id up to
// its structure: a thermostat resolves through its link record, a
// remote sensor hops through its owning thermostat first. The walk is
// bounded; a broken or incomplete chain resolves to nothing rather
// than looping.
func (s *Store) StructureOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := id

	for hop := 0; hop < maxOwnershipHops; hop++ {
		if structureID, ok := s.deviceStructures[current]; ok {
			return structureID, true
		}

		parent, ok := s.sensorParents[current]
		if !ok {
			return "", false
		}

		current = parent
	}

	return "", false
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func indexStructure(s *Store, b *models.Bucket) error {
	var value models.StructureValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	id := b.ObjectID()
	s.structureNames[id] = value.Name
	s.timeZones[id] = value.TimeZone

	if value.PostalCode != "" {
		s.postalCodes[id] = value.PostalCode
	}

	return nil
}

func indexDevice(s *Store, b *models.Bucket) error {
	var value models.DeviceValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	id := b.ObjectID()
	s.thermostats[id] = value.WhereID
	s.deviceInfo[id] = models.DeviceInfo{
		ModelVersion:   value.ModelVersion,
		CurrentVersion: value.CurrentVersion,
	}

	return nil
}

func indexLink(s *Store, b *models.Bucket) error {
	var value models.LinkValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	// The link value names the structure as a full object key.
	structure := models.Bucket{ObjectKey: value.Structure}
	s.deviceStructures[b.ObjectID()] = structure.ObjectID()

	return nil
}

func indexRcsSettings(s *Store, b *models.Bucket) error {
	var value models.RcsSettingsValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	thermostatID := b.ObjectID()

	for _, sensorKey := range value.AssociatedRcsSensors {
		sensor := models.Bucket{ObjectKey: sensorKey}
		s.sensorParents[sensor.ObjectID()] = thermostatID
	}

	return nil
}

func indexKryptonite(s *Store, b *models.Bucket) error {
	var value models.KryptoniteValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	s.sensors[b.ObjectID()] = value.WhereID

	return nil
}

func indexWhere(s *Store, b *models.Bucket) error {
	var value models.WhereValue
	if err := json.Unmarshal(b.Value, &value); err != nil {
		return err
	}

	for _, area := range value.Wheres {
		s.areas[area.WhereID] = area.Name
	}

	return nil
}
