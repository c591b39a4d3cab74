package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		IMAPConfig:     &IMAPConfig{Host: "imap.example.com", Username: "billing@example.com"},
		StorageConfig:  &StorageConfig{Backend: StorageBackendLocal},
		PipelineConfig: &PipelineConfig{Workers: 4},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing host", func(c *Config) { c.IMAPConfig.Host = "" }, ErrMissingIMAPHost},
		{"missing user", func(c *Config) { c.IMAPConfig.Username = "" }, ErrMissingIMAPCredentials},
		{"unknown backend", func(c *Config) { c.StorageConfig.Backend = "ftp" }, ErrUnknownStorageBackend},
		{"r2 backend", func(c *Config) { c.StorageConfig.Backend = StorageBackendR2 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_ClampsWorkers(t *testing.T) {
	cfg := validConfig()
	cfg.PipelineConfig.Workers = 0

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.PipelineConfig.Workers)
}
