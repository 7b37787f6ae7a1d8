// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/invopop/jsonschema"
)

// SchemaID identifies the generated config schema.
const SchemaID = "https://github.com/kadirpekel/orgrouter/schemas/config.json"

// Schema returns the JSON Schema of Config. Property names follow the yaml
// tags so the schema validates config files as written.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&Config{})
	schema.ID = SchemaID
	schema.Title = "orgrouter configuration"
	schema.Description = "Configuration of the Admin agent that routes queries to the HR and Finance agents"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []interface{}{
		map[string]interface{}{
			"name": DefaultName,
			"agents": map[string]interface{}{
				"hr":      map[string]interface{}{"host": DefaultHRHost, "port": DefaultAgentPort},
				"finance": map[string]interface{}{"host": DefaultFinanceHost, "port": DefaultAgentPort},
			},
			"llm": map[string]interface{}{
				"provider": string(LLMProviderBedrock),
				"model":    DefaultBedrockModel,
				"region":   DefaultAWSRegion,
			},
		},
	}

	return schema
}
