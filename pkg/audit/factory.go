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

package audit

import (
	"context"
	"fmt"

	"github.com/kadirpekel/orgrouter/pkg/config"
)

// NewStoreFromConfig creates the audit Store. Returns nil if auditing is
// disabled.
//
// Example config:
//
//	databases:
//	  default:
//	    driver: sqlite
//	    database: ./.orgrouter/audit.db
//
//	audit:
//	  backend: sql
//	  database: default
func NewStoreFromConfig(ctx context.Context, cfg *config.Config, pool *config.DBPool) (Store, error) {
	auditCfg := cfg.Audit
	if auditCfg == nil || !auditCfg.IsEnabled() {
		return nil, nil
	}

	switch auditCfg.Backend {
	case "memory", "":
		return NewMemoryStore(auditCfg.Capacity), nil

	case "sql":
		if pool == nil {
			return nil, fmt.Errorf("DBPool is required for SQL audit backend")
		}
		dbCfg, ok := cfg.GetDatabase(auditCfg.Database)
		if !ok {
			return nil, fmt.Errorf("database %q not found", auditCfg.Database)
		}
		db, err := pool.Get(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get database connection: %w", err)
		}
		return NewSQLStore(ctx, db, dbCfg.Dialect())

	default:
		return nil, fmt.Errorf("unknown audit backend: %s", auditCfg.Backend)
	}
}
