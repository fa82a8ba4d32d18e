package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket.
type GridFSStore struct {
	client  *mongo.Client
	bucket  *gridfs.Bucket
	baseURL string
}

func NewGridFSStore(ctx context.Context, uri, database, baseURL string) (*GridFSStore, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName("artifacts"))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &GridFSStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (s *GridFSStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := s.bucket.UploadFromStream(name, r, opts); err != nil {
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	return URLFor(s.baseURL, name), nil
}

func (s *GridFSStore) Open(ctx context.Context, name string) (*Blob, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	stream, err := s.bucket.OpenDownloadStreamByName(name)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	file := stream.GetFile()
	contentType := contentTypeFor(name)
	if len(file.Metadata) > 0 {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok && ct != "" {
			contentType = ct
		}
	}
	return &Blob{
		Name:        name,
		ContentType: contentType,
		Size:        file.Length,
		Body:        stream,
	}, nil
}

func (s *GridFSStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
