package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	config "github.com/maheshrc27/publisher/configs"
)

// R2Store reads media objects kept in a Cloudflare R2 bucket.
type R2Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewR2Store(ctx context.Context, cfg config.R2) (*R2Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &R2Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketName,
	}, nil
}

// Get streams an object. The caller closes the body.
func (r *R2Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logrus.Info(err.Error())
		return nil, "", fmt.Errorf("get r2 object %s: %w", key, err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

// PresignedURL returns a time-limited GET URL that remote platforms can pull from.
func (r *R2Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		logrus.Info(err.Error())
		return "", fmt.Errorf("presign r2 object %s: %w", key, err)
	}
	return req.URL, nil
}
