package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validTestConfig() *Config {
	return &Config{
		Port:                "8480",
		JWTSecret:           "secure-secret-at-least-32-chars-long",
		DBPassword:          "secure-password",
		Env:                 "test",
		ModerationTimeout:   4 * time.Second,
		OnModerationFailure: ModerationAllow,
		DeleteScope:         DeletePostOnly,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown moderation policy", func(c *Config) { c.OnModerationFailure = "maybe" }, true},
		{"reject moderation policy", func(c *Config) { c.OnModerationFailure = ModerationReject }, false},
		{"unknown delete scope", func(c *Config) { c.DeleteScope = "everything" }, true},
		{"cascade delete scope", func(c *Config) { c.DeleteScope = DeleteCascade }, false},
		{"zero moderation timeout", func(c *Config) { c.ModerationTimeout = 0 }, true},
		{"negative moderation timeout", func(c *Config) { c.ModerationTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validTestConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_ProductionHardening(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"default jwt secret", func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" }, true},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"default db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"empty db password", func(c *Config) { c.DBPassword = "" }, true},
		{"hardened config", func(c *Config) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validTestConfig()
			c.Env = "production"
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
