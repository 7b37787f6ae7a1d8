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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbPingTimeout     = 10 * time.Second
	dbConnMaxLifetime = time.Hour
)

// sqlitePragmas run on every file-backed SQLite database.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
}

// DBPool hands out one *sql.DB per DSN so components naming the same
// database share connections.
type DBPool struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewDBPool() *DBPool {
	return &DBPool{dbs: make(map[string]*sql.DB)}
}

// Get opens and pings the database on first use and caches it by DSN.
func (p *DBPool) Get(cfg *DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN()

	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.dbs[dsn]; ok {
		return db, nil
	}
	db, err := openDB(cfg, dsn)
	if err != nil {
		return nil, err
	}
	p.dbs[dsn] = db
	return db, nil
}

func openDB(cfg *DatabaseConfig, dsn string) (*sql.DB, error) {
	db, err := sql.Open(cfg.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect(), err)
	}

	sqlite := cfg.Dialect() == "sqlite"
	if sqlite {
		// single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Dialect(), err)
	}

	if sqlite && dsn != ":memory:" {
		for _, pragma := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				slog.Warn("SQLite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}

	slog.Debug("Opened database", "dialect", cfg.Dialect(), "max_open", db.Stats().MaxOpenConnections)
	return db, nil
}

// Close closes every pooled database. The pool is empty afterwards.
func (p *DBPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, db := range p.dbs {
		errs = append(errs, db.Close())
	}
	clear(p.dbs)
	return errors.Join(errs...)
}
