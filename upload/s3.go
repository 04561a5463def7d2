package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds connection settings for an S3 compatible bucket.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// NewS3Client builds a client from static credentials. Endpoint may point at MinIO or another
// S3 compatible service.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AccessKeyID,
					SecretAccessKey: cfg.SecretAccessKey,
					Source:          "socialbbs-config",
				}, nil
			}))
	}
	return s3.New(opts)
}

// S3Store keeps uploads in a bucket under a key prefix.
type S3Store struct {
	client     S3API
	bucket     string
	prefix     string
	publicBase string
	namer      *Namer
	serve      Policy
}

// NewS3Store creates a bucket backed store. Objects are written as <prefix><generated name>.
func NewS3Store(client S3API, bucket, prefix, publicBase string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		prefix:     prefix,
		publicBase: publicBase,
		namer:      NewNamer(),
		serve:      DefaultPolicy(),
	}
}

// WithServePolicy sets the policy deciding which objects a browser may render inline. Other
// objects are written with an attachment disposition.
func (s *S3Store) WithServePolicy(p Policy) *S3Store {
	s.serve = p
	return s
}

// WithNamer replaces the name generator.
func (s *S3Store) WithNamer(n *Namer) *S3Store {
	s.namer = n
	return s
}

func (s *S3Store) Put(ctx context.Context, r io.Reader, ext string) (StoredFile, error) {
	// The body is buffered so a retry after a name collision can resend it.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return StoredFile{}, err
	}
	body := buf.Bytes()

	contentType, inline := s.serve.ServeType(ext)
	var disposition *string
	if !inline {
		disposition = aws.String("attachment")
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.namer.Generate(ext)
		key := s.prefix + name
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:             aws.String(s.bucket),
			Key:                aws.String(key),
			Body:               bytes.NewReader(body),
			ContentLength:      aws.Int64(int64(len(body))),
			ContentType:        aws.String(contentType),
			ContentDisposition: disposition,
			IfNoneMatch:        aws.String("*"),
		})
		if err != nil {
			if isKeyTaken(err) {
				continue
			}
			return StoredFile{}, fmt.Errorf("s3 put %s: %w", key, err)
		}
		return StoredFile{
			Name: name,
			Dir:  strings.TrimSuffix(s.bucket+"/"+s.prefix, "/"),
			Ext:  ext,
			Size: int64(len(body)),
			URL:  publicURL(s.publicBase, key),
		}, nil
	}
	return StoredFile{}, ErrNamesExhausted
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", name, err)
	}
	return nil
}

// isKeyTaken reports whether a conditional put lost to an existing object.
func isKeyTaken(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
