// Package storage provides blob storage for uploaded answer documents,
// backed by Azure Blob Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rs/zerolog/log"

	"github.com/trnhan/paperscore/config"
)

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey indicates an empty or path-traversing storage key.
	ErrInvalidKey = errors.New("invalid storage key")
)

// ObjectStore is the blob collaborator consumed by the pipeline and the
// upload controllers.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type azureStore struct {
	client    *azblob.Client
	container string
}

// NewObjectStore creates the Azure-backed store and ensures the container
// exists.
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.Storage.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	store := &azureStore{client: client, container: cfg.Storage.Container}

	_, err = client.CreateContainer(context.Background(), store.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("ensure container %s: %w", store.container, err)
	}

	log.Info().Str("container", store.container).Msg("Blob storage ready")
	return store, nil
}

func (s *azureStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := s.client.UploadStream(ctx, s.container, key, reader, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	return nil
}

func (s *azureStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	return resp.Body, nil
}

func (s *azureStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
