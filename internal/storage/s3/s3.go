package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type Storage struct {
	name   string
	bucket string
	prefix string
	client *s3.Client
}

type Options struct {
	Name      string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// New builds an S3 mirror. Without static keys the default AWS credential
// chain (env, shared config, instance role) is used.
func New(ctx context.Context, opt Options) (*Storage, error) {
	if opt.Bucket == "" || opt.Region == "" {
		return nil, fmt.Errorf("s3: bucket and region are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opt.Region)}
	if opt.AccessKey != "" || opt.SecretKey != "" {
		if opt.AccessKey == "" || opt.SecretKey == "" {
			return nil, fmt.Errorf("s3: access_key and secret_key must be set together")
		}
		creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Storage{
		name:   opt.Name,
		bucket: opt.Bucket,
		prefix: strings.Trim(opt.Prefix, "/"),
		client: s3.NewFromConfig(cfg),
	}, nil
}

func (s *Storage) Name() string { return s.name }

// Put uploads r in a single PutObject. r should be seekable (an *os.File)
// so the SDK can sign the payload.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	fullKey := objectKey(s.prefix, key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Body:   r,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("s3 putobject failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("s3 putobject failed: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, fullKey), nil
}

// S3 keys always use forward slashes.
func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
