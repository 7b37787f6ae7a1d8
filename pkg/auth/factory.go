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

package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kadirpekel/orgrouter/pkg/config"
)

// NewValidatorFromConfig creates a JWTValidator from configuration.
// Returns nil if inbound authentication is not enabled.
func NewValidatorFromConfig(ctx context.Context, cfg *config.AuthConfig) (*JWTValidator, error) {
	if cfg == nil || !cfg.IsEnabled() {
		return nil, nil
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	validator, err := NewJWTValidator(ctx, JWTValidatorConfig{
		JWKSURL:         cfg.JWKSURL,
		Issuer:          cfg.Issuer,
		Audience:        cfg.Audience,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT validator: %w", err)
	}
	return validator, nil
}

// NewTokenSourceFromConfig creates the outbound TokenSource.
// Returns nil if outbound authentication is not enabled.
func NewTokenSourceFromConfig(cfg *config.ClientAuthConfig, hc *http.Client) (TokenSource, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if cfg.Token != "" {
		return StaticToken(cfg.Token), nil
	}

	ts, err := NewClientCredentials(ClientCredentialsConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
		HTTPClient:   hc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}
	return ts, nil
}
