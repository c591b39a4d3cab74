package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
)

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12222"`
	APIKey      string `env:"API_KEY"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Logger      *logger.Config
	Tracing     *tracing.JaegerConfig
}

type MailscanDatabaseConfig struct {
	Host            string `env:"MAILSCAN_POSTGRES_HOST,required"`
	Port            string `env:"MAILSCAN_POSTGRES_PORT,required"`
	User            string `env:"MAILSCAN_POSTGRES_USER,required"`
	DBName          string `env:"MAILSCAN_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSCAN_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSCAN_POSTGRES_DB_MAX_CONN" envDefault:"20"`
	MaxIdleConn     int    `env:"MAILSCAN_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"5"`
	ConnMaxLifetime int    `env:"MAILSCAN_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSCAN_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSCAN_POSTGRES_SSL_MODE" envDefault:"disable"`
}

// IMAPConfig describes the single mailbox the pipeline reads from.
type IMAPConfig struct {
	Host               string        `env:"IMAP_HOST"`
	Port               int           `env:"IMAP_PORT" envDefault:"993"`
	Username           string        `env:"IMAP_USER"`
	Password           string        `env:"IMAP_PASSWORD"`
	TLS                bool          `env:"IMAP_TLS" envDefault:"true"`
	InsecureSkipVerify bool          `env:"IMAP_INSECURE_SKIP_VERIFY" envDefault:"false"`
	Mailbox            string        `env:"IMAP_MAILBOX" envDefault:"INBOX"`
	FetchLimit         int           `env:"IMAP_FETCH_LIMIT" envDefault:"10"`
	DialTimeout        time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
}

type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" envDefault:"local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"uploads"`
	R2       *R2StorageConfig
	S3       *S3StorageConfig
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}

type S3StorageConfig struct {
	Region          string `env:"AWS_S3_REGION" envDefault:"eu-west-1"`
	AccessKeyID     string `env:"AWS_S3_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"AWS_S3_ACCESS_KEY_SECRET"`
	Bucket          string `env:"AWS_S3_BUCKET" envDefault:"attachments"`
}

type OCRConfig struct {
	Language    string  `env:"OCR_LANGUAGE" envDefault:"eng"`
	RenderScale float64 `env:"OCR_RENDER_SCALE" envDefault:"2"`
	TempDir     string  `env:"OCR_TEMP_DIR"`
}

type PipelineConfig struct {
	Workers           int           `env:"PIPELINE_WORKERS" envDefault:"4"`
	AttachmentTimeout time.Duration `env:"PIPELINE_ATTACHMENT_TIMEOUT" envDefault:"2m"`
	InvoiceKeywords   []string      `env:"INVOICE_KEYWORDS" envSeparator:"," envDefault:"invoice,bill,payment,due date,amount due,total,tax,subtotal"`
}

const (
	StorageBackendLocal = "local"
	StorageBackendR2    = "r2"
	StorageBackendS3    = "s3"
)

var (
	ErrMissingIMAPHost        = errors.New("IMAP_HOST is not configured")
	ErrMissingIMAPCredentials = errors.New("IMAP_USER is not configured")
	ErrUnknownStorageBackend  = errors.New("STORAGE_BACKEND must be one of local, r2, s3")
)
