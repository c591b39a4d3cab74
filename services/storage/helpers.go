package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/config"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/services/storage/aws_client"
)

// NewS3StorageService creates a StorageService configured for AWS S3
func NewS3StorageService(awsRegion, accessKeyID, accessKeySecret, bucketName string, isPublic bool) interfaces.StorageService {
	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	})

	return NewObjectStorageService(s3Client, ObjectStorageConfig{
		BucketName: bucketName,
		IsPublic:   isPublic,
	})
}

// NewR2StorageService creates a StorageService configured for Cloudflare R2
func NewR2StorageService(accountID, accessKeyID, accessKeySecret, bucketName string, isPublic bool) interfaces.StorageService {
	r2Client := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       accountID,
		AccessKeyID:     accessKeyID,
		AccessKeySecret: accessKeySecret,
	})

	return NewObjectStorageService(r2Client, ObjectStorageConfig{
		BucketName: bucketName,
		IsPublic:   isPublic,
	})
}

// NewStorageServiceFromConfig picks the blob backend named by STORAGE_BACKEND.
func NewStorageServiceFromConfig(cfg *config.StorageConfig) (interfaces.StorageService, error) {
	switch cfg.Backend {
	case config.StorageBackendLocal, "":
		return NewLocalStorageService(cfg.LocalDir)
	case config.StorageBackendR2:
		if cfg.R2 == nil || cfg.R2.AccountID == "" {
			return nil, errors.New("r2 storage requires CLOUDFLARE_R2_ACCOUNT_ID")
		}
		return NewR2StorageService(cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.AccessKeySecret, cfg.R2.EmailAttachmentBucket, false), nil
	case config.StorageBackendS3:
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return nil, errors.New("s3 storage requires AWS_S3_BUCKET")
		}
		return NewS3StorageService(cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.AccessKeySecret, cfg.S3.Bucket, false), nil
	default:
		return nil, config.ErrUnknownStorageBackend
	}
}
