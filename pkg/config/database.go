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
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// sqlDriver describes how a configured driver maps onto database/sql.
type sqlDriver struct {
	name    string // registered database/sql driver
	dialect string // audit store dialect
	port    int
	remote  bool
}

var sqlDrivers = map[string]sqlDriver{
	"postgres": {name: "postgres", dialect: "postgres", port: 5432, remote: true},
	"mysql":    {name: "mysql", dialect: "mysql", port: 3306, remote: true},
	"sqlite":   {name: "sqlite3", dialect: "sqlite"},
	"sqlite3":  {name: "sqlite3", dialect: "sqlite"},
}

// DatabaseConfig is a named SQL connection. Components reference it by key
// under the databases section, e.g. audit.database.
//
//	databases:
//	  main:
//	    driver: sqlite
//	    database: ./orgrouter.db
type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver" jsonschema:"title=Driver,description=SQL driver,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Server hostname (ignored for SQLite)"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Server port; defaults per driver"`
	Database string `yaml:"database" json:"database" jsonschema:"title=Database,description=Database name or SQLite file path"`
	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`
	SSLMode  string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" jsonschema:"title=SSL Mode,description=PostgreSQL sslmode"`

	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"title=Max Open Connections,minimum=1,default=25"`
	MaxIdle  int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"title=Max Idle Connections,minimum=1,default=5"`
}

func (c *DatabaseConfig) driver() (sqlDriver, bool) {
	d, ok := sqlDrivers[c.Driver]
	return d, ok
}

func (c *DatabaseConfig) SetDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
	if d, ok := c.driver(); ok && c.Port == 0 {
		c.Port = d.port
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	d, ok := c.driver()
	if !ok {
		known := make([]string, 0, len(sqlDrivers))
		for k := range sqlDrivers {
			known = append(known, k)
		}
		slices.Sort(known)
		return fmt.Errorf("invalid driver %q (valid: %v)", c.Driver, known)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if d.remote && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// DSN renders the connection string in the form the driver expects.
// MySQL connections always set parseTime so TIMESTAMP columns scan into
// time.Time.
func (c *DatabaseConfig) DSN() string {
	switch c.Dialect() {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.Database,
		}
		switch {
		case c.Username != "" && c.Password != "":
			u.User = url.UserPassword(c.Username, c.Password)
		case c.Username != "":
			u.User = url.User(c.Username)
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return u.String()
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		mc.ParseTime = true
		return mc.FormatDSN()
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}

// DriverName is the name registered with database/sql.
func (c *DatabaseConfig) DriverName() string {
	if d, ok := c.driver(); ok {
		return d.name
	}
	return c.Driver
}

// Dialect folds driver aliases so sqlite3 and sqlite share one dialect.
func (c *DatabaseConfig) Dialect() string {
	if d, ok := c.driver(); ok {
		return d.dialect
	}
	return c.Driver
}
