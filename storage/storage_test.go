package storage

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/message-relay-backend/interfaces"
)

func TestFileBackendStoreFetch(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)
	require.True(t, backend.Available(context.Background()))

	data := []byte(`{"message_id":"00"}`)
	id, err := backend.Store(context.Background(), data, interfaces.MessageRecordType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	fetched, err := backend.Fetch(context.Background(), id, interfaces.MessageRecordType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	// Content types are separate namespaces.
	_, err = backend.Fetch(context.Background(), id, interfaces.ReceiptType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackendFetchMissing(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), interfaces.ComputeID([]byte("absent")), interfaces.ReceiptType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

// failingBackend always errors, for multi-backend fallback tests.
type failingBackend struct{}

func (f *failingBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (f *failingBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	return interfaces.ContentID{}, errors.New("backend down")
}

func (f *failingBackend) Available(ctx context.Context) bool { return true }
func (f *failingBackend) Name() string                       { return "failing" }
func (f *failingBackend) LocationURI() string                { return "failing://" }

func TestMultiStorageFallback(t *testing.T) {
	fileBackend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{&failingBackend{}, fileBackend}, nil)

	data := []byte("receipt")
	id, err := multi.Store(context.Background(), data, interfaces.ReceiptType)
	require.NoError(t, err)

	fetched, err := multi.Fetch(context.Background(), id, interfaces.ReceiptType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
}

func TestMultiStorageAllFailing(t *testing.T) {
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{&failingBackend{}}, nil)

	_, err := multi.Store(context.Background(), []byte("x"), interfaces.ReceiptType)
	assert.Error(t, err)

	_, err = multi.Fetch(context.Background(), interfaces.ComputeID([]byte("x")), interfaces.ReceiptType)
	assert.Error(t, err)
}

func TestFactoryCreatesFileBackend(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())
	dir := t.TempDir()

	backend, err := factory.StorageBackendFor(interfaces.StorageBackendLocation("file://" + dir))
	require.NoError(t, err)
	assert.Equal(t, "file-"+filepath.Base(dir), backend.Name())
}

func TestFactoryRejectsUnknownScheme(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	_, err := factory.StorageBackendFor("carrier-pigeon://loft")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestCreateMultiBackendSkipsInvalid(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		"carrier-pigeon://loft",
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
	})
	require.NoError(t, err)
	assert.True(t, multi.Available(context.Background()))

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"carrier-pigeon://loft"})
	assert.Error(t, err)
}
