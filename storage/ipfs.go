package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// IPFSBackend implements a storage backend using the InterPlanetary File
// System. Content addressing is double: records are indexed by their SHA-256
// content ID locally while IPFS tracks its own CID, kept in an in-process map.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string

	mu   sync.RWMutex
	cids map[string]string // content ID hex -> IPFS CID
}

// NewIPFSBackend creates a new IPFS storage backend connected to the
// specified node API host and port.
func NewIPFSBackend(host, port, timeout string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	return &IPFSBackend{
		shell:       shell.NewShell(apiURL),
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
		cids:        make(map[string]string),
	}, nil
}

// Fetch retrieves a record from IPFS by its content identifier and type.
// Returns ErrContentNotFound if the content is unknown to this backend or
// ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()

	b.mu.RLock()
	cid, ok := b.cids[b.indexKey(id, contentType)]
	b.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") {
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to fetch record from IPFS",
			slog.String("cid", cid),
			slog.String("content_id", id.String()),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch record from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read record from IPFS: %w", err)
	}

	b.log.Debug("Fetched record from IPFS",
		slog.String("cid", cid),
		slog.String("content_id", id.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store adds a record to IPFS and returns its content identifier, the SHA-256
// hash of the data. Returns ErrBackendUnavailable if the node is not accessible.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data))
	if err != nil {
		return id, fmt.Errorf("failed to add record to IPFS: %w", err)
	}

	b.mu.Lock()
	b.cids[b.indexKey(id, contentType)] = cid
	b.mu.Unlock()

	b.log.Debug("Stored record in IPFS",
		slog.String("cid", cid),
		slog.String("content_id", id.String()),
		slog.String("content_type", contentType.String()))

	return id, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) indexKey(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return fmt.Sprintf("%s-%s", contentType, id)
}
