package state

import (
	"context"
	stderrors "errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// GCSStore keeps state as a single Cloud Storage object.
type GCSStore struct {
	client *storage.Client
	object *storage.ObjectHandle
	bucket string
	key    string
}

// NewGCSStore creates a store for gs://bucket/key. An empty credentialsFile
// uses application default credentials.
func NewGCSStore(ctx context.Context, bucket, key, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return NewGCSStoreWithClient(client, bucket, key), nil
}

// NewGCSStoreWithClient creates a store on an existing client.
func NewGCSStoreWithClient(client *storage.Client, bucket, key string) *GCSStore {
	return &GCSStore{
		client: client,
		object: client.Bucket(bucket).Object(key),
		bucket: bucket,
		key:    key,
	}
}

// Load reads and decodes the state object.
func (g *GCSStore) Load(ctx context.Context) (*State, error) {
	r, err := g.object.NewReader(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to open state object").
			WithDetail("bucket", g.bucket).
			WithDetail("key", g.key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state object")
	}
	return Decode(data)
}

// Save writes the encoded state, replacing the object.
func (g *GCSStore) Save(ctx context.Context, st *State) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}

	w := g.object.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state object")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to finalize state object").
			WithDetail("bucket", g.bucket).
			WithDetail("key", g.key)
	}
	return nil
}

// Close releases the client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
