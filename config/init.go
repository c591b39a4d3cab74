package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
)

type Config struct {
	AppConfig              *AppConfig
	Logger                 *logger.Config
	Tracing                *tracing.JaegerConfig
	MailscanDatabaseConfig *MailscanDatabaseConfig
	IMAPConfig             *IMAPConfig
	StorageConfig          *StorageConfig
	OCRConfig              *OCRConfig
	PipelineConfig         *PipelineConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:              &AppConfig{},
		Logger:                 &logger.Config{},
		Tracing:                &tracing.JaegerConfig{},
		MailscanDatabaseConfig: &MailscanDatabaseConfig{},
		IMAPConfig:             &IMAPConfig{},
		StorageConfig: &StorageConfig{
			R2: &R2StorageConfig{},
			S3: &S3StorageConfig{},
		},
		OCRConfig:      &OCRConfig{},
		PipelineConfig: &PipelineConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailscan config: %v", err)
	}

	return config, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.IMAPConfig == nil || c.IMAPConfig.Host == "" {
		return ErrMissingIMAPHost
	}
	if c.IMAPConfig.Username == "" {
		return ErrMissingIMAPCredentials
	}
	switch c.StorageConfig.Backend {
	case StorageBackendLocal, StorageBackendR2, StorageBackendS3:
	default:
		return ErrUnknownStorageBackend
	}
	if c.PipelineConfig.Workers < 1 {
		c.PipelineConfig.Workers = 1
	}
	return nil
}
