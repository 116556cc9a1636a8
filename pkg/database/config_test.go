package database_test

import (
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/page-ingest/pkg/database"
)

func TestConfig_Finalize_Defaults(t *testing.T) {
	cfg := &database.Config{Name: "ingest", User: "ingest"}

	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Host, "localhost")
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want %d", cfg.Port, 5432)
	}
	if cfg.ConnMaxLifetimeDuration() != 15*time.Minute {
		t.Errorf("ConnMaxLifetimeDuration() = %v, want %v", cfg.ConnMaxLifetimeDuration(), 15*time.Minute)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, want disable", cfg.SSLMode)
	}
	if cfg.ConnTimeoutDuration() != 5*time.Second {
		t.Errorf("ConnTimeoutDuration() = %v, want %v", cfg.ConnTimeoutDuration(), 5*time.Second)
	}
}

func TestConfig_Finalize_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  database.Config
	}{
		{"missing name", database.Config{User: "u"}},
		{"missing user", database.Config{Name: "n"}},
		{"bad lifetime", database.Config{Name: "n", User: "u", ConnMaxLifetime: "forever"}},
		{"bad ssl mode", database.Config{Name: "n", User: "u", SSLMode: "sometimes"}},
		{"idle above open", database.Config{Name: "n", User: "u", MaxOpenConns: 2, MaxIdleConns: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("Finalize() succeeded, want error")
			}
		})
	}
}

func TestConfig_Env(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")
	t.Setenv("TEST_DB_PORT", "6543")

	cfg := &database.Config{Name: "n", User: "u"}
	env := &database.Env{Host: "TEST_DB_HOST", Port: "TEST_DB_PORT"}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Host != "db.internal" || cfg.Port != 6543 {
		t.Errorf("host/port = %s/%d, want db.internal/6543", cfg.Host, cfg.Port)
	}
}

func TestConfig_Dsn(t *testing.T) {
	tests := []struct {
		name  string
		cfg   database.Config
		parts []string
		not   string
	}{
		{
			name:  "plain",
			cfg:   database.Config{Host: "h", Port: 1, Name: "n", User: "u", Password: "p", SSLMode: "require"},
			parts: []string{"host='h'", "port=1", "dbname='n'", "user='u'", "password='p'", "sslmode=require"},
			not:   "application_name",
		},
		{
			name:  "quoted password and application name",
			cfg:   database.Config{Host: "h", Port: 1, Name: "n", User: "u", Password: `it's a\secret`, SSLMode: "disable", ApplicationName: "page-ingest"},
			parts: []string{`password='it\'s a\\secret'`, "application_name='page-ingest'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.Dsn()
			for _, part := range tt.parts {
				if !strings.Contains(dsn, part) {
					t.Errorf("Dsn() = %q, missing %q", dsn, part)
				}
			}
			if tt.not != "" && strings.Contains(dsn, tt.not) {
				t.Errorf("Dsn() = %q, want no %q", dsn, tt.not)
			}
		})
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := &database.Config{Host: "a", Port: 5432, Name: "n"}
	cfg.Merge(&database.Config{Host: "b"})

	if cfg.Host != "b" || cfg.Port != 5432 || cfg.Name != "n" {
		t.Errorf("Merge() = %+v", cfg)
	}
}
