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

// Environment selects which vendor backend and OAuth client to talk to.
type Environment struct {
	Name     string `json:"name"`
	ClientID string `json:"client_id"`
	Host     string `json:"host"`
}

// Environments maps the config selector to its backend. The client IDs
// are the vendor's own iOS application identities, which is what this
// API expects.
var Environments = map[string]Environment{
	"production": {
		Name:     "Google Account",
		ClientID: "733249279899-1gpkq9duqmdp55a7e5lft1pr2smumdla.apps.googleusercontent.com",
		Host:     "https://home.nest.com",
	},
	"fieldtest": {
		Name:     "Google Account (Field Test)",
		ClientID: "384529615266-57v6vaptkmhm64n9hn5dcmkr4at14p8j.apps.googleusercontent.com",
		Host:     "https://home.ft.nest.com",
	},
}

// DefaultEnvironment is used when the config does not name one.
const DefaultEnvironment = "production"
