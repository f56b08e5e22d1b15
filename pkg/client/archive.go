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

package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/emberhome/nestlink/pkg/logger"
)

// Archiver dumps raw server responses to disk for diagnostics. The
// dumps are overwrite-per-name, never read back by the client, and a
// failed write only logs: archiving must not affect the data path.
type Archiver struct {
	enabled bool
	dir     string
	log     logger.Logger
}

// NewArchiver returns an Archiver; when disabled every Save is a no-op.
func NewArchiver(enabled bool, dir string, log logger.Logger) *Archiver {
	return &Archiver{enabled: enabled, dir: dir, log: log}
}

// Save writes payload as indented JSON to {dir}/{name}.json. Path
// separators and dots in the name are flattened so object keys like
// "device.123" become safe file names.
func (a *Archiver) Save(name string, payload interface{}) {
	if a == nil || !a.enabled || payload == nil {
		return
	}

	if raw, ok := payload.(json.RawMessage); ok && len(raw) == 0 {
		return
	}

	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		a.log.Warn().Err(err).Str("dir", a.dir).Msg("Failed to create response archive directory")
		return
	}

	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, ".", "_")

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		a.log.Warn().Err(err).Str("name", name).Msg("Failed to encode response for archive")
		return
	}

	path := filepath.Join(a.dir, name+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("Failed to write response archive")
	}
}
