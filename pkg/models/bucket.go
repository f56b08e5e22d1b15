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

package models

import (
	"encoding/json"
	"strings"
)

// Bucket is one revisioned record in the vendor object model. The key is
// a "{type}.{id}" pair, the revision is monotonically non-decreasing per
// key, and the value payload's shape depends on the type prefix.
type Bucket struct {
	ObjectKey       string          `json:"object_key"`
	ObjectRevision  int64           `json:"object_revision"`
	ObjectTimestamp int64           `json:"object_timestamp"`
	Value           json.RawMessage `json:"value,omitempty"`
}

// TypePrefix returns the text before the first key separator, or the
// whole key when no separator is present.
func (b *Bucket) TypePrefix() string {
	if i := strings.IndexByte(b.ObjectKey, '.'); i >= 0 {
		return b.ObjectKey[:i]
	}

	return b.ObjectKey
}

// ObjectID returns the text after the first key separator, or "" when no
// separator is present.
func (b *Bucket) ObjectID() string {
	if i := strings.IndexByte(b.ObjectKey, '.'); i >= 0 {
		return b.ObjectKey[i+1:]
	}

	return ""
}

// CursorEntry scopes one tracked key in a subscribe request: the server
// only returns buckets newer than the given revision/timestamp.
type CursorEntry struct {
	ObjectKey       string `json:"object_key"`
	ObjectRevision  int64  `json:"object_revision"`
	ObjectTimestamp int64  `json:"object_timestamp"`
}

// AppLaunchServiceURLs nests the per-user endpoints inside the app_launch
// response.
type AppLaunchServiceURLs struct {
	URLs   SessionURLs   `json:"urls"`
	Limits SessionLimits `json:"limits"`
}

// AppLaunchResponse is the initial full-state snapshot.
type AppLaunchResponse struct {
	UpdatedBuckets []Bucket             `json:"updated_buckets"`
	ServiceURLs    AppLaunchServiceURLs `json:"service_urls"`
	Weather        json.RawMessage      `json:"weather_for_structures,omitempty"`
}

// SubscribeResponse is one long-poll delta batch.
type SubscribeResponse struct {
	Objects []Bucket `json:"objects"`
}

// StructureValue is the indexed slice of a "structure." bucket payload.
type StructureValue struct {
	Name        string `json:"name"`
	TimeZone    string `json:"time_zone"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

// DeviceValue is the indexed slice of a "device." (thermostat) payload.
type DeviceValue struct {
	WhereID        string `json:"where_id"`
	ModelVersion   string `json:"model_version"`
	CurrentVersion string `json:"current_version"`
}

// LinkValue ties a device to its owning structure; Structure is a full
// "structure.{id}" object key.
type LinkValue struct {
	Structure string `json:"structure"`
}

// RcsSettingsValue lists the remote sensors associated with a thermostat
// as full "kryptonite.{id}" object keys.
type RcsSettingsValue struct {
	AssociatedRcsSensors []string `json:"associated_rcs_sensors"`
}

// KryptoniteValue is the indexed slice of a temperature sensor payload.
type KryptoniteValue struct {
	WhereID string `json:"where_id"`
}

// WhereEntry names one area within a structure.
type WhereEntry struct {
	WhereID string `json:"where_id"`
	Name    string `json:"name"`
}

// WhereValue is the payload of a "where." bucket: the areas of one
// structure.
type WhereValue struct {
	Wheres []WhereEntry `json:"wheres"`
}

// DeviceInfo is the derived hardware/software description of a
// thermostat, kept for device registry consumers.
type DeviceInfo struct {
	ModelVersion   string `json:"model_version"`
	CurrentVersion string `json:"current_version"`
}
