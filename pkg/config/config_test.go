package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HR_HOST", "HR_PORT", "FINANCE_HOST", "FINANCE_PORT",
		"LLM_PROVIDER", "BEDROCK_MODEL_ID", "AWS_REGION",
		"OKTA_DOMAIN", "OKTA_AUTH_SERVER_ID", "OKTA_AUDIENCE", "OKTA_SCOPE",
		"OKTA_CLIENT_ID", "OKTA_CLIENT_SECRET",
		"LOG_LEVEL", "LOG_FILE", "LOG_FORMAT",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if got, want := cfg.Agents.HR.BaseURL(), "http://hr-agent-service.default.svc.cluster.local:80/"; got != want {
		t.Errorf("HR base URL = %q, want %q", got, want)
	}
	if got, want := cfg.Agents.Finance.BaseURL(), "http://finance-agent-service.default.svc.cluster.local:80/"; got != want {
		t.Errorf("Finance base URL = %q, want %q", got, want)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 150*time.Second {
		t.Errorf("RequestTimeout = %s, want 150s", cfg.Server.RequestTimeout)
	}
	if cfg.Agents.CallTimeout != 120*time.Second {
		t.Errorf("CallTimeout = %s, want 2m0s", cfg.Agents.CallTimeout)
	}
	if cfg.Routing.ClassifierTimeout != 5*time.Second {
		t.Errorf("ClassifierTimeout = %s, want 5s", cfg.Routing.ClassifierTimeout)
	}
	if !cfg.Routing.IsCrossCheck() {
		t.Error("cross check should default to true")
	}
	if cfg.LLM.Provider != LLMProviderBedrock {
		t.Errorf("LLM.Provider = %q, want bedrock", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != DefaultBedrockModel || cfg.LLM.Region != DefaultAWSRegion {
		t.Errorf("LLM = %s/%s, want %s/%s", cfg.LLM.Model, cfg.LLM.Region, DefaultBedrockModel, DefaultAWSRegion)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0 {
		t.Error("classification temperature should default to 0")
	}
	if cfg.Server.Auth.IsEnabled() {
		t.Error("auth should be disabled without configuration")
	}
	if cfg.Agents.Auth.Enabled {
		t.Error("outbound auth should be disabled without configuration")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HR_HOST", "hr.local")
	t.Setenv("HR_PORT", "9001")
	t.Setenv("FINANCE_HOST", "finance.local")
	t.Setenv("FINANCE_PORT", "9002")
	t.Setenv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if got := cfg.Agents.HR.BaseURL(); got != "http://hr.local:9001/" {
		t.Errorf("HR base URL = %q", got)
	}
	if got := cfg.Agents.Finance.BaseURL(); got != "http://finance.local:9002/" {
		t.Errorf("Finance base URL = %q", got)
	}
	if cfg.LLM.Model != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Region != "eu-west-1" {
		t.Errorf("LLM.Region = %q", cfg.LLM.Region)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestFromEnv_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("HR_PORT", "eighty")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric HR_PORT")
	}
}

func TestFromEnv_Okta(t *testing.T) {
	clearEnv(t)
	t.Setenv("OKTA_DOMAIN", "dev-123.okta.com")
	t.Setenv("OKTA_AUTH_SERVER_ID", "aus1")
	t.Setenv("OKTA_CLIENT_ID", "client")
	t.Setenv("OKTA_CLIENT_SECRET", "secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	in := cfg.Server.Auth
	if !in.IsEnabled() {
		t.Fatal("inbound auth should be enabled by OKTA_DOMAIN")
	}
	if in.Issuer != "https://dev-123.okta.com/oauth2/aus1" {
		t.Errorf("Issuer = %q", in.Issuer)
	}
	if in.JWKSURL != "https://dev-123.okta.com/oauth2/aus1/v1/keys" {
		t.Errorf("JWKSURL = %q", in.JWKSURL)
	}
	if in.Audience != DefaultAudience || in.RequiredScope != DefaultScope {
		t.Errorf("Audience/Scope = %q/%q", in.Audience, in.RequiredScope)
	}

	out := cfg.Agents.Auth
	if !out.Enabled {
		t.Fatal("outbound auth should be enabled by client credentials")
	}
	if out.TokenURL != "https://dev-123.okta.com/oauth2/aus1/v1/token" {
		t.Errorf("TokenURL = %q", out.TokenURL)
	}
	if len(out.Scopes) != 1 || out.Scopes[0] != DefaultScope {
		t.Errorf("Scopes = %v", out.Scopes)
	}
}

func TestParse_YAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_FINANCE_URL", "https://finance.example.com")

	cfg, err := Parse([]byte(`
name: Test Admin
server:
  port: 9090
  request_timeout: 30s
agents:
  hr:
    host: hr
    port: 8081
  finance:
    url: ${TEST_FINANCE_URL}
  card_ttl: 10m
routing:
  classifier_timeout: 2s
  cross_check: false
llm:
  provider: none
rate_limiting:
  enabled: true
  requests_per_minute: 30
audit:
  backend: memory
  capacity: 50
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Name != "Test Admin" || cfg.Server.Port != 9090 {
		t.Errorf("name/port = %q/%d", cfg.Name, cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.Server.RequestTimeout)
	}
	if got := cfg.Agents.HR.BaseURL(); got != "http://hr:8081/" {
		t.Errorf("HR base URL = %q", got)
	}
	if got := cfg.Agents.Finance.BaseURL(); got != "https://finance.example.com/" {
		t.Errorf("Finance base URL = %q", got)
	}
	if cfg.Agents.CardTTL != 10*time.Minute || cfg.Agents.CardCacheSize != DefaultCardCacheSize {
		t.Errorf("card cache = %s/%d", cfg.Agents.CardTTL, cfg.Agents.CardCacheSize)
	}
	if cfg.Routing.ClassifierTimeout != 2*time.Second || cfg.Routing.IsCrossCheck() {
		t.Errorf("routing = %+v", cfg.Routing)
	}
	if cfg.LLM.IsEnabled() {
		t.Error("provider none should disable the LLM")
	}
	if !cfg.RateLimiting.IsEnabled() || cfg.RateLimiting.RequestsPerMinute != 30 || cfg.RateLimiting.Burst != 10 {
		t.Errorf("rate limiting = %+v", cfg.RateLimiting)
	}
	if !cfg.Audit.IsEnabled() || cfg.Audit.Capacity != 50 {
		t.Errorf("audit = %+v", cfg.Audit)
	}
}

func TestParse_JSON(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`{"server": {"port": 7070}, "llm": {"provider": "ollama"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.LLM.Model != "llama3.2" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
}

func TestParse_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HR_HOST", "from-env")

	cfg, err := Parse([]byte("agents:\n  hr:\n    url: http://from-file:8000/\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Agents.HR.BaseURL(); got != "http://from-env:80/" {
		t.Errorf("HR base URL = %q, want env override", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown field", "servre:\n  port: 1\n", "servre"},
		{"bad port", "server:\n  port: 70000\n", "port"},
		{"bad provider", "llm:\n  provider: watson\n", "invalid provider"},
		{"missing api key", "llm:\n  provider: anthropic\n", "api_key"},
		{"bad scheme", "agents:\n  hr:\n    url: ftp://hr/\n", "http or https"},
		{"bad log format", "logger:\n  format: xml\n", "log format"},
		{"sql audit without database", "audit:\n  backend: sql\n", "database"},
		{"audit references unknown database", "audit:\n  backend: sql\n  database: nope\n", "not defined"},
		{"auth without issuer", "server:\n  auth:\n    enabled: true\n", "jwks_url"},
		{"client auth without secret", "agents:\n  auth:\n    enabled: true\n    client_id: x\n    token_url: http://t\n", "client_secret"},
		{"classifier timeout too long", "routing:\n  classifier_timeout: 5m\n", "classifier_timeout"},
		{"malformed", "server: [port\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Databases(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
databases:
  main:
    driver: mysql
    host: db
    username: router
    password: pw
    database: orgrouter
audit:
  backend: sql
  database: main
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	db, ok := cfg.GetDatabase("main")
	if !ok {
		t.Fatal("database main not found")
	}
	mc, err := mysql.ParseDSN(db.DSN())
	if err != nil {
		t.Fatalf("DSN() %q does not parse: %v", db.DSN(), err)
	}
	if mc.User != "router" || mc.Passwd != "pw" || mc.Addr != "db:3306" || mc.DBName != "orgrouter" || !mc.ParseTime {
		t.Errorf("DSN() = %q", db.DSN())
	}
	if db.DriverName() != "mysql" || db.Dialect() != "mysql" {
		t.Errorf("driver = %q, dialect = %q", db.DriverName(), db.Dialect())
	}
	if _, ok := cfg.GetDatabase("other"); ok {
		t.Error("unexpected database")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "orgrouter.yaml")
	if err := os.WriteFile(path, []byte("name: From File\nllm:\n  provider: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, loader, err := LoadConfigFile(t.Context(), path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	defer loader.Close()

	if cfg.Name != "From File" {
		t.Errorf("Name = %q", cfg.Name)
	}
}

func TestLoadConfigFile_NotFound(t *testing.T) {
	if _, _, err := LoadConfigFile(t.Context(), "/nonexistent/orgrouter.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoader_WatchReloads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "orgrouter.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: none\nrouting:\n  classifier_timeout: 1s\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	_, loader, err := LoadConfigFile(t.Context(), path, WithOnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}))
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	defer loader.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = loader.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("llm:\n  provider: none\nrouting:\n  classifier_timeout: 3s\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Routing.ClassifierTimeout != 3*time.Second {
			t.Errorf("reloaded ClassifierTimeout = %s, want 3s", cfg.Routing.ClassifierTimeout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestServerConfig_URL(t *testing.T) {
	tests := []struct {
		cfg  ServerConfig
		want string
	}{
		{ServerConfig{Host: "0.0.0.0", Port: 8080}, "http://localhost:8080/"},
		{ServerConfig{Host: "admin.local", Port: 80}, "http://admin.local:80/"},
		{ServerConfig{Host: "0.0.0.0", Port: 8080, PublicURL: "https://admin.example.com/"}, "https://admin.example.com/"},
	}
	for _, tt := range tests {
		if got := tt.cfg.URL(); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}

func TestSchema(t *testing.T) {
	schema := Schema()
	if schema.ID != SchemaID {
		t.Errorf("schema ID = %q", schema.ID)
	}
	for _, prop := range []string{"server", "agents", "routing", "llm", "audit", "rate_limiting", "observability"} {
		if _, ok := schema.Properties.Get(prop); !ok {
			t.Errorf("schema is missing property %q", prop)
		}
	}
}

func TestDatabaseConfig_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		dsn     string
		driver  string
		dialect string
	}{
		{
			name:    "postgres",
			cfg:     DatabaseConfig{Driver: "postgres", Host: "pg", Database: "orgrouter", Username: "router", Password: "pw"},
			dsn:     "postgres://router:pw@pg:5432/orgrouter?sslmode=disable",
			driver:  "postgres",
			dialect: "postgres",
		},
		{
			name:    "postgres without password",
			cfg:     DatabaseConfig{Driver: "postgres", Host: "pg", Port: 6432, Database: "orgrouter", Username: "router", SSLMode: "require"},
			dsn:     "postgres://router@pg:6432/orgrouter?sslmode=require",
			driver:  "postgres",
			dialect: "postgres",
		},
		{
			name:    "sqlite alias",
			cfg:     DatabaseConfig{Driver: "sqlite", Database: "./audit.db"},
			dsn:     "./audit.db",
			driver:  "sqlite3",
			dialect: "sqlite",
		},
		{
			name:    "sqlite3",
			cfg:     DatabaseConfig{Driver: "sqlite3", Database: ":memory:"},
			dsn:     ":memory:",
			driver:  "sqlite3",
			dialect: "sqlite",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := cfg.DSN(); got != tt.dsn {
				t.Errorf("DSN() = %q, want %q", got, tt.dsn)
			}
			if got := cfg.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %q, want %q", got, tt.driver)
			}
			if got := cfg.Dialect(); got != tt.dialect {
				t.Errorf("Dialect() = %q, want %q", got, tt.dialect)
			}
		})
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	for name, cfg := range map[string]DatabaseConfig{
		"no driver":      {Database: "x"},
		"unknown driver": {Driver: "oracle", Database: "x"},
		"no database":    {Driver: "sqlite"},
		"remote no host": {Driver: "mysql", Database: "x"},
		"negative pool":  {Driver: "sqlite", Database: "x", MaxConns: -1},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDBPool_SharesSQLite(t *testing.T) {
	pool := NewDBPool()
	defer pool.Close()

	cfg := &DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "audit.db")}
	cfg.SetDefaults()

	a, err := pool.Get(cfg)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, err := pool.Get(cfg)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a != b {
		t.Error("same DSN should share one *sql.DB")
	}
	if got := a.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServerConfig_WriteTimeoutOutlastsRequest(t *testing.T) {
	var def ServerConfig
	def.SetDefaults()
	if def.WriteTimeout <= def.RequestTimeout {
		t.Errorf("default write_timeout %s must exceed request_timeout %s", def.WriteTimeout, def.RequestTimeout)
	}

	custom := ServerConfig{RequestTimeout: 5 * time.Minute}
	custom.SetDefaults()
	if got, want := custom.WriteTimeout, 5*time.Minute+WriteTimeoutMargin; got != want {
		t.Errorf("derived write_timeout = %s, want %s", got, want)
	}

	tests := []struct {
		name    string
		write   time.Duration
		wantErr bool
	}{
		{"shorter", 120 * time.Second, true},
		{"equal", 150 * time.Second, true},
		{"longer", 151 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ServerConfig{WriteTimeout: tt.write, RequestTimeout: 150 * time.Second}
			c.SetDefaults()
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	short := ServerConfig{WriteTimeout: 120 * time.Millisecond, RequestTimeout: 150 * time.Millisecond}
	if got := short.EffectiveWriteTimeout(); got <= short.RequestTimeout {
		t.Errorf("EffectiveWriteTimeout() = %s, want > %s", got, short.RequestTimeout)
	}
}
