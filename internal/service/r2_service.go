package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	config "github.com/postpipe/postpipe/configs"
)

// MediaStore is the object-storage capability: put bytes by key, get bytes
// back by URL, mint public URLs.
type MediaStore interface {
	Configured() bool
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
	PublicURL(key string) string
}

type R2Service struct {
	cfg    config.Config
	client *s3.Client
}

func NewR2Service(cfg config.Config) *R2Service {
	r := &R2Service{cfg: cfg}
	if !r.Configured() {
		return r
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Error(err.Error())
		return &R2Service{cfg: cfg}
	}

	endpoint := cfg.R2.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID)
	}

	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return r
}

func (r *R2Service) Configured() bool {
	return r.cfg.R2.AccessKey != "" && r.cfg.R2.SecretKey != "" && r.cfg.R2.BucketName != "" &&
		(r.cfg.R2.Endpoint != "" || r.cfg.R2.AccountID != "")
}

func (r *R2Service) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if r.client == nil {
		return "", errors.New("R2 is not configured")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.cfg.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	_, err := r.client.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return r.PublicURL(key), nil
}

func (r *R2Service) PublicURL(key string) string {
	if r.cfg.R2.PublicURL != "" {
		return strings.TrimSuffix(r.cfg.R2.PublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", r.cfg.R2.BucketName, key)
}

// Download fetches object bytes for a URL previously produced by Upload.
// Handles both public CDN URLs and endpoint-style <endpoint>/<bucket>/<key>
// URLs.
func (r *R2Service) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if r.client == nil {
		return nil, errors.New("R2 is not configured")
	}

	key, err := r.objectKey(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (r *R2Service) objectKey(rawURL string) (string, error) {
	if r.cfg.R2.PublicURL != "" {
		prefix := strings.TrimSuffix(r.cfg.R2.PublicURL, "/") + "/"
		if strings.HasPrefix(rawURL, prefix) {
			return strings.TrimPrefix(rawURL, prefix), nil
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	path := strings.TrimPrefix(parsed.Path, "/")

	if strings.HasSuffix(parsed.Host, ".r2.cloudflarestorage.com") {
		// bucket-style host: the full path is the key
		if strings.HasPrefix(parsed.Host, r.cfg.R2.BucketName+".") {
			return path, nil
		}
		// endpoint-style host: <endpoint>/<bucket>/<key>
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 && parts[0] == r.cfg.R2.BucketName {
			return parts[1], nil
		}
		return path, nil
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 2 && parts[0] == r.cfg.R2.BucketName {
		return parts[1], nil
	}
	if path == "" {
		return "", fmt.Errorf("could not extract object key from URL: %s", rawURL)
	}
	return path, nil
}
