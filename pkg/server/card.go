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

package server

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/orgrouter/pkg/config"
)

const (
	AdminSkillID = "admin_agent"

	adminDescription = "Routing agent that analyzes queries and forwards them to the HR or Finance agent, " +
		"or to both, over the A2A protocol."
	adminSkillDescription = "Forwards queries to the HR and Finance agents based on their content " +
		"and combines the answers."
)

var adminExamples = []string{
	"What is the name of employee EMP0002?",
	"How many vacation days does employee EMP0001 have left?",
	"What is the annual salary of employee EMP0003?",
	"Calculate leave deduction for 5 days off for EMP0002",
	"What public holidays are there in the US in 2024?",
}

// NewAdminCard builds the card served at the well-known paths. A bearer
// security scheme is declared only when inbound auth is enabled.
func NewAdminCard(cfg *config.Config) *a2a.AgentCard {
	card := &a2a.AgentCard{
		Name:               cfg.Name,
		Description:        adminDescription,
		URL:                cfg.Server.URL(),
		Version:            cfg.Version,
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities: a2a.AgentCapabilities{
			Streaming: false,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Skills: []a2a.AgentSkill{{
			ID:          AdminSkillID,
			Name:        cfg.Name,
			Description: adminSkillDescription,
			Tags:        []string{"Admin", "Router", "Supervisor"},
			Examples:    adminExamples,
		}},
	}

	if cfg.Server.Auth.IsEnabled() {
		card.SecuritySchemes = a2a.NamedSecuritySchemes{
			"BearerAuth": a2a.HTTPAuthSecurityScheme{
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "Okta-issued JWT with the " + cfg.Server.Auth.RequiredScope + " scope",
			},
		}
		card.Security = []a2a.SecurityRequirements{
			{"BearerAuth": a2a.SecuritySchemeScopes{}},
		}
	}

	return card
}
