package ctscrape

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Output is a write destination that streams into an S3 object instead
// of a local file, adapted from ctsubmit's S3Storage (same static
// credentials + path-style client) but shaped as an io.WriteCloser: the
// whole point of the streaming serializer is to never hold the document
// in memory, so unlike S3Storage.Set (which takes a []byte), this writes
// through an io.Pipe into manager.Uploader's multipart upload.
type S3Output struct {
	pw   *io.PipeWriter
	done chan error
}

// NewS3Output starts a background multipart upload of key into bucket and
// returns a writer that feeds it. Close must be called exactly once, and
// its error reflects the upload's outcome.
func NewS3Output(ctx context.Context, region, bucket, endpoint, username, password, key string) *S3Output {
	s3Config := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(username, password, ""),
		Region:      region,
	}
	if endpoint != "" {
		s3Config.BaseEndpoint = aws.String(endpoint)
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	uploader := manager.NewUploader(client)

	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		// Drain pr so Write on the other end doesn't block forever if
		// Upload returned early on an error.
		_, _ = io.Copy(io.Discard, pr)
		done <- err
	}()

	return &S3Output{pw: pw, done: done}
}

func (s *S3Output) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

// Close signals end-of-document to the uploader and waits for the
// multipart upload to finish.
func (s *S3Output) Close() error {
	if err := s.pw.Close(); err != nil {
		return systemErr("closing S3 output pipe", err)
	}
	if err := <-s.done; err != nil {
		return outputErr("S3 upload", err)
	}
	return nil
}

// OpenOutput resolves a Config's output destination to a WriteCloser:
// stdout (wrapped so Close is a no-op), a local file (created/truncated,
// mirroring FsStorage's "create the file, not the directories" shape
// since the destination is a single file path here, not a key space), or
// an S3 object when S3Bucket is set.
func OpenOutput(ctx context.Context, cfg Config) (io.WriteCloser, error) {
	if cfg.S3Bucket != "" {
		return NewS3Output(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Endpoint, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), cfg.Output), nil
	}
	if cfg.Output == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, systemErr("creating output file", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
