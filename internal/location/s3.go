package location

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options describes an S3-compatible bucket.
type S3Options struct {
	Endpoint string
	Bucket   string
	Prefix   string
	Region   string
	Secure   bool
	// Creds defaults to the AWS then MinIO environment variables.
	Creds *credentials.Credentials
}

// S3 stores each counter as a small object.
type S3 struct {
	name   string
	client *minio.Client
	bucket string
	prefix string
}

// OpenS3 connects to the bucket, creating it when absent.
func OpenS3(ctx context.Context, name string, opts S3Options) (*S3, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("location %s: s3 endpoint and bucket are required", name)
	}
	creds := opts.Creds
	if creds == nil {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Region: opts.Region,
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("location %s: s3 client: %w", name, err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("location %s: bucket %s: %w", name, opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("location %s: create bucket %s: %w", name, opts.Bucket, err)
		}
	}
	return &S3{name: name, client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (s *S3) Name() string { return s.name }

func (s *S3) ReadCounter(ctx context.Context, scope, sequence string) (State, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(s.prefix, scope, sequence), minio.GetObjectOptions{})
	if err != nil {
		return State{}, notFoundAsZero(err)
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		return State{}, notFoundAsZero(err)
	}
	return decodeState(b)
}

func (s *S3) WriteCounter(ctx context.Context, scope, sequence string, st State) error {
	b := encodeState(st)
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(s.prefix, scope, sequence),
		bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (s *S3) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("location %s: bucket %s missing", s.name, s.bucket)
	}
	return nil
}

func (s *S3) Close() error { return nil }

// notFoundAsZero maps a missing object to a nil error; the caller then
// returns the zero State.
func notFoundAsZero(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}
