package destination

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// DeliveryRequest is the JSON envelope posted to a destination endpoint.
type DeliveryRequest struct {
	MessageID        string   `json:"message_id"`
	DestinationChain string   `json:"destination_chain"`
	Receiver         string   `json:"receiver"`
	Payload          string   `json:"payload"`
	Attributes       []string `json:"attributes"`
}

// HTTPDestination forwards execution envelopes to an external handler over
// HTTP POST. Any transport error or non-2xx response is a delivery failure.
type HTTPDestination struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPDestination creates a destination handler posting to the endpoint.
func NewHTTPDestination(endpoint string, log *slog.Logger) (*HTTPDestination, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty destination endpoint", interfaces.ErrInvalidConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}

	return &HTTPDestination{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

// WithClient overrides the HTTP client, mainly for tests.
func (d *HTTPDestination) WithClient(client *http.Client) *HTTPDestination {
	d.client = client
	return d
}

// Deliver posts the execution envelope to the destination endpoint.
func (d *HTTPDestination) Deliver(ctx context.Context, msg *interfaces.Message) error {
	attributes := make([]string, 0, len(msg.Attributes))
	for _, attribute := range msg.Attributes {
		attributes = append(attributes, hex.EncodeToString(attribute))
	}

	body, err := json.Marshal(DeliveryRequest{
		MessageID:        msg.ID.String(),
		DestinationChain: msg.DestinationChain.String(),
		Receiver:         msg.Receiver,
		Payload:          hex.EncodeToString(msg.Payload),
		Attributes:       attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to encode delivery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("destination rejected delivery: status %d: %s", resp.StatusCode, string(respBody))
	}

	d.log.Debug("Delivered message to destination",
		slog.String("message_id", msg.ID.String()),
		slog.String("endpoint", d.endpoint),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Endpoint returns the configured destination endpoint URL.
func (d *HTTPDestination) Endpoint() string {
	return d.endpoint
}
