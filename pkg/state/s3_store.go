package state

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps state as a single S3 object.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	key      string
}

// NewS3Store loads the default AWS configuration and creates a store for
// s3://bucket/key.
func NewS3Store(ctx context.Context, bucket, key, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, key), nil
}

// NewS3StoreWithClient creates a store on an existing client.
func NewS3StoreWithClient(client S3API, bucket, key string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		key:      key,
	}
}

// Load fetches and decodes the state object.
func (s *S3Store) Load(ctx context.Context) (*State, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return New(), nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to get state object").
			WithDetail("bucket", s.bucket).
			WithDetail("key", s.key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state object")
	}
	return Decode(data)
}

// Save uploads the encoded state, replacing the object.
func (s *S3Store) Save(ctx context.Context, st *State) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to upload state object").
			WithDetail("bucket", s.bucket).
			WithDetail("key", s.key)
	}
	return nil
}
