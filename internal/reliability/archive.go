// Package reliability keeps run results durable: S3 archiving of completed backtests and
// scheduled database maintenance.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config locates the archive bucket
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // Optional, for S3-compatible stores
	AccessKey string // Optional; the default credential chain is used when empty
	SecretKey string
	Prefix    string // Key prefix, defaults to "backtests"
}

// objectUploader is the part of manager.Uploader the archiver needs
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver uploads completed runs as gzipped JSON documents
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader objectUploader
	log      zerolog.Logger
}

// NewS3Archiver builds an S3 client from cfg
func NewS3Archiver(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(cfg, manager.NewUploader(client), log), nil
}

func newS3Archiver(cfg S3Config, uploader objectUploader, log zerolog.Logger) *S3Archiver {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "backtests"
	}
	return &S3Archiver{
		bucket:   cfg.Bucket,
		prefix:   prefix,
		uploader: uploader,
		log:      log.With().Str("service", "s3_archive").Str("bucket", cfg.Bucket).Logger(),
	}
}

// Key returns the object key of a run: <prefix>/YYYY/MM/DD/<id>.json.gz by start time
func (a *S3Archiver) Key(result *backtest.Result) string {
	return fmt.Sprintf("%s/%s/%s.json.gz", a.prefix, result.StartedAt.UTC().Format("2006/01/02"), result.ID)
}

// Archive implements backtest.Archiver
func (a *S3Archiver) Archive(ctx context.Context, result *backtest.Result) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(result); err != nil {
		return "", fmt.Errorf("failed to encode run %s: %w", result.ID, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to compress run %s: %w", result.ID, err)
	}

	key := a.Key(result)
	size := buf.Len()
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            &buf,
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]string{
			"run-id":  result.ID,
			"tickers": fmt.Sprint(len(result.Config.Tickers)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload run %s: %w", result.ID, err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	a.log.Info().
		Str("run_id", result.ID).
		Str("location", location).
		Int("bytes", size).
		Msg("Archived backtest run")
	return location, nil
}
