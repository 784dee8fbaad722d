package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/platform/gcp"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

func stubDocumentStore(t *testing.T, fn func(*logger.Logger, gcp.ObjectStorageConfig) (*gcp.DocumentStore, error)) *int {
	t.Helper()
	calls := 0
	prev := newDocumentStoreWithConfig
	newDocumentStoreWithConfig = func(log *logger.Logger, cfg gcp.ObjectStorageConfig) (*gcp.DocumentStore, error) {
		calls++
		return fn(log, cfg)
	}
	t.Cleanup(func() { newDocumentStoreWithConfig = prev })
	return &calls
}

func TestResolveDocumentStoreMemoryMode(t *testing.T) {
	calls := stubDocumentStore(t, func(*logger.Logger, gcp.ObjectStorageConfig) (*gcp.DocumentStore, error) {
		return nil, errors.New("must not be called")
	})
	store, ocrStore, err := resolveDocumentStore(logger.NewNop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeMemory})
	require.NoError(t, err)
	require.IsType(t, &objectstore.MemoryStore{}, store)
	require.Nil(t, ocrStore)
	require.Zero(t, *calls)
}

func TestResolveDocumentStoreConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  gcp.ObjectStorageConfig
		code StorageProviderBootstrapErrorCode
	}{
		{"unknown mode", gcp.ObjectStorageConfig{Mode: "s3"}, StorageProviderBootstrapErrorInvalidMode},
		{"gcs without bucket", gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, StorageProviderBootstrapErrorMissingBucket},
		{"emulator without host", gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator, Bucket: "docs"}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{"emulator bad host", gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator, Bucket: "docs", EmulatorHost: "fake-gcs"}, StorageProviderBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := stubDocumentStore(t, func(*logger.Logger, gcp.ObjectStorageConfig) (*gcp.DocumentStore, error) {
				return nil, errors.New("must not be called")
			})
			_, _, err := resolveDocumentStore(logger.NewNop(), tc.cfg)
			require.Error(t, err)
			require.Equal(t, tc.code, storageProviderBootstrapErrorCode(err))
			require.Zero(t, *calls)
		})
	}
}

func TestResolveDocumentStoreConnectFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	calls := stubDocumentStore(t, func(*logger.Logger, gcp.ObjectStorageConfig) (*gcp.DocumentStore, error) {
		return nil, cause
	})
	_, _, err := resolveDocumentStore(logger.NewNop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS, Bucket: "docs"})
	require.Error(t, err)
	require.ErrorIs(t, err, cause)
	require.Equal(t, StorageProviderBootstrapErrorConnectFailed, storageProviderBootstrapErrorCode(err))
	require.Equal(t, 1, *calls)

	var bootstrapErr *StorageProviderBootstrapError
	require.True(t, errors.As(err, &bootstrapErr))
	require.Equal(t, "gcs", bootstrapErr.Mode)
}
