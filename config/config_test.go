package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	if cfg.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Host)
	}
	if cfg.Port != 4000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.LoginTimeout != 30*time.Second {
		t.Errorf("login timeout = %s", cfg.LoginTimeout)
	}
	if cfg.IdleTimeout != time.Hour {
		t.Errorf("idle timeout = %s", cfg.IdleTimeout)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return New() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port too low", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"zero login timeout", func(c *Config) { c.LoginTimeout = 0 }, true},
		{"zero idle timeout", func(c *Config) { c.IdleTimeout = 0 }, true},
		{"connect without host", func(c *Config) { c.Connect = true }, true},
		{"connect ok", func(c *Config) { c.Connect = true; c.ConnectHost = "example.com" }, false},
		{"connect spaced user", func(c *Config) {
			c.Connect = true
			c.ConnectHost = "example.com"
			c.Username = "a b"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
