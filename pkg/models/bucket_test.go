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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKeyParts(t *testing.T) {
	tests := []struct {
		key    string
		prefix string
		id     string
	}{
		{"device.09AA01AC111111", "device", "09AA01AC111111"},
		{"structure.abc-123", "structure", "abc-123"},
		{"kryptonite.09AA01AC111111.1", "kryptonite", "09AA01AC111111.1"},
		{"nokeyseparator", "nokeyseparator", ""},
	}

	for _, tt := range tests {
		b := Bucket{ObjectKey: tt.key}
		assert.Equal(t, tt.prefix, b.TypePrefix(), tt.key)
		assert.Equal(t, tt.id, b.ObjectID(), tt.key)
	}
}

func TestAppLaunchResponseDecode(t *testing.T) {
	body := `{
		"updated_buckets": [
			{
				"object_key": "structure.abc",
				"object_revision": 2,
				"object_timestamp": 1646175355000,
				"value": {"name": "Home", "time_zone": "UTC"}
			}
		],
		"service_urls": {
			"urls": {"transport_url": "https://transport.example:443"}
		}
	}`

	var launch AppLaunchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &launch))

	require.Len(t, launch.UpdatedBuckets, 1)
	assert.Equal(t, "https://transport.example:443", launch.ServiceURLs.URLs.TransportURL)

	var value StructureValue
	require.NoError(t, json.Unmarshal(launch.UpdatedBuckets[0].Value, &value))
	assert.Equal(t, "Home", value.Name)
	assert.Equal(t, "UTC", value.TimeZone)
}
