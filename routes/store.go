package routes

import (
	"fmt"
	"time"

	"github.com/cppla/socialbbs/config"
	"github.com/cppla/socialbbs/upload"
)

// NewStore builds the upload backend named by cfg.UploadBackend.
func NewStore(cfg config.AppConfig) (upload.Store, error) {
	switch cfg.UploadBackend {
	case "disk", "":
		return upload.NewDiskStore(cfg.UploadDir, cfg.UploadPublicBase), nil
	case "memory":
		return upload.NewMemoryStore(cfg.UploadPublicBase), nil
	case "s3":
		client := upload.NewS3Client(upload.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
		return upload.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, cfg.S3PublicBase).WithServePolicy(NewPolicy(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}

// NewPolicy maps the upload section of cfg onto a Gatekeeper policy.
func NewPolicy(cfg config.AppConfig) upload.Policy {
	return upload.Policy{
		MaxFileSizeBytes: cfg.UploadMaxFileSizeBytes,
		MaxFileCount:     cfg.UploadMaxFileCount,
		AllowedMimeTypes: cfg.UploadAllowedMimeTypes,
		VerifyContent:    cfg.UploadVerifyContent,
	}
}

// OrphanTTL is how long an unclaimed upload survives before the sweeper removes it.
func OrphanTTL(cfg config.AppConfig) time.Duration {
	return time.Duration(cfg.UploadOrphanTTLMinutes) * time.Minute
}
