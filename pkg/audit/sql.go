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
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kadirpekel/orgrouter/pkg/routing"
)

const createAuditTableSQL = `
CREATE TABLE IF NOT EXISTS routing_audit (
    correlation_id VARCHAR(64) NOT NULL PRIMARY KEY,
    caller VARCHAR(255) NOT NULL,
    target VARCHAR(32) NOT NULL,
    source VARCHAR(32) NOT NULL,
    keyword_target VARCHAR(32) NOT NULL,
    disagrees BOOLEAN NOT NULL,
    outcomes TEXT NOT NULL,
    duration_ms BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

// MySQL has no CREATE INDEX IF NOT EXISTS, so the index goes into the table
// definition there.
const createAuditTableMySQL = `
CREATE TABLE IF NOT EXISTS routing_audit (
    correlation_id VARCHAR(64) NOT NULL PRIMARY KEY,
    caller VARCHAR(255) NOT NULL,
    target VARCHAR(32) NOT NULL,
    source VARCHAR(32) NOT NULL,
    keyword_target VARCHAR(32) NOT NULL,
    disagrees BOOLEAN NOT NULL,
    outcomes TEXT NOT NULL,
    duration_ms BIGINT NOT NULL,
    created_at TIMESTAMP(6) NOT NULL,
    INDEX idx_routing_audit_created_at (created_at)
)`

const createAuditIndexSQL = `CREATE INDEX IF NOT EXISTS idx_routing_audit_created_at ON routing_audit(created_at)`

// SQLStore writes audit records to a SQL database.
// It supports Postgres, MySQL, and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates the routing_audit table if needed.
// Supported dialects: "postgres", "mysql", "sqlite".
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.dialect == "mysql" {
		if _, err := s.db.ExecContext(ctx, createAuditTableMySQL); err != nil {
			return fmt.Errorf("failed to create routing_audit table: %w", err)
		}
		return nil
	}

	if _, err := s.db.ExecContext(ctx, createAuditTableSQL); err != nil {
		return fmt.Errorf("failed to create routing_audit table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createAuditIndexSQL); err != nil {
		return fmt.Errorf("failed to create routing_audit index: %w", err)
	}
	return nil
}

func (s *SQLStore) Record(ctx context.Context, rec Record) error {
	outcomes, err := json.Marshal(rec.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to encode outcomes: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := s.rebind(`INSERT INTO routing_audit
		(correlation_id, caller, target, source, keyword_target, disagrees, outcomes, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		rec.CorrelationID,
		rec.Caller,
		string(rec.Target),
		string(rec.Source),
		string(rec.KeywordTarget),
		rec.Disagrees,
		string(outcomes),
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Caller != "" {
		where = append(where, "caller = ?")
		args = append(args, filter.Caller)
	}
	if filter.Target != "" {
		where = append(where, "target = ?")
		args = append(args, string(filter.Target))
	}
	if filter.DisagreesOnly {
		where = append(where, "disagrees = ?")
		args = append(args, true)
	}

	query := `SELECT correlation_id, caller, target, source, keyword_target, disagrees, outcomes, duration_ms, created_at FROM routing_audit`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + strconv.Itoa(filter.limit())

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                           Record
			target, source, keywordTarget string
			outcomes                      string
			durationMS                    int64
		)
		if err := rows.Scan(&rec.CorrelationID, &rec.Caller, &target, &source, &keywordTarget,
			&rec.Disagrees, &outcomes, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Target = routing.Target(target)
		rec.Source = routing.Source(source)
		rec.KeywordTarget = routing.Target(keywordTarget)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(outcomes), &rec.Outcomes); err != nil {
			return nil, fmt.Errorf("failed to decode outcomes for %s: %w", rec.CorrelationID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}
	return records, nil
}

// Close does not close the database; the connection may be shared through
// the pool.
func (s *SQLStore) Close() error {
	return nil
}

func (s *SQLStore) Dialect() string {
	return s.dialect
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
