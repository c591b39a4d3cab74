package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailscan/config"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/models"
)

type Repositories struct {
	EmailRepository           interfaces.EmailRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	BatchRunRepository        interfaces.BatchRunRepository
}

func InitRepositories(mailscanDB *gorm.DB) *Repositories {
	return &Repositories{
		EmailRepository:           NewEmailRepository(mailscanDB),
		EmailAttachmentRepository: NewEmailAttachmentRepository(mailscanDB),
		BatchRunRepository:        NewBatchRunRepository(mailscanDB),
	}
}

func MigrateMailscanDB(dbConfig *config.MailscanDatabaseConfig, mailscanDB *gorm.DB) error {
	db, err := mailscanDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = mailscanDB.AutoMigrate(
		&models.Email{},
		&models.EmailAttachment{},
		&models.BatchRun{},
	)

	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
