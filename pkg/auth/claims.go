// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import "context"

// Claims holds the parts of a validated access token the router uses.
type Claims struct {
	Subject  string
	Issuer   string
	Email    string
	ClientID string
	Scopes   []string
	Custom   map[string]interface{}
}

// HasScope reports whether the token was granted scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authorize returns ErrUnauthorized for missing claims and
// ErrInsufficientScope when scope was not granted. An empty scope only
// requires claims.
func (c *Claims) Authorize(scope string) error {
	if c == nil {
		return ErrUnauthorized
	}
	if scope != "" && !c.HasScope(scope) {
		return ErrInsufficientScope
	}
	return nil
}

// Caller names the principal for logs, audit and rate limiting.
func (c *Claims) Caller() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Subject != "":
		return c.Subject
	case c.ClientID != "":
		return c.ClientID
	default:
		return c.Email
	}
}

func (c *Claims) GetStringClaim(key string) string {
	if c == nil || c.Custom == nil {
		return ""
	}
	s, _ := c.Custom[key].(string)
	return s
}

type claimsContextKey struct{}

// ContextWithClaims returns a copy of ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by the middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}
