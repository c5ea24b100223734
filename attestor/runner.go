package attestor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/ruteri/message-relay-backend/api/clients"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/keymanager"
)

// DefaultPollInterval is how often the runner polls for pending messages.
const DefaultPollInterval = 5 * time.Second

// RelayAPI is the subset of the relay API the runner needs. Satisfied by
// clients.RelayClient.
type RelayAPI interface {
	PendingMessages(ctx context.Context) ([]interfaces.MessageID, error)
	Attest(ctx context.Context, messageID interfaces.MessageID, attestor interfaces.AccountAddress, signature []byte) (int, error)
}

// Runner is the attestor endorsement daemon. It polls the relay for pending
// messages and submits a signature for every message it has not yet endorsed.
//
// Transport failures are retried with exponential backoff. Rejections that
// cannot succeed on retry, such as a duplicate vote after a restart or an
// unauthorized key, are recorded as seen and skipped from then on.
type Runner struct {
	client   RelayAPI
	key      *ecdsa.PrivateKey
	attestor interfaces.AccountAddress
	interval time.Duration
	log      *slog.Logger

	// newBackoff builds the retry policy for a single API call.
	newBackoff func() backoff.BackOff

	seen map[interfaces.MessageID]struct{}
}

// NewRunner creates an endorsement daemon signing with the given key.
func NewRunner(client RelayAPI, key *ecdsa.PrivateKey, interval time.Duration, log *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Runner{
		client:   client,
		key:      key,
		attestor: keymanager.SignerAddress(key),
		interval: interval,
		log:      log,
		newBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
		},
		seen: make(map[interfaces.MessageID]struct{}),
	}
}

// Attestor returns the daemon's signing address.
func (r *Runner) Attestor() interfaces.AccountAddress {
	return r.attestor
}

// Run polls until the context is cancelled. It performs one poll immediately
// so a fresh daemon catches up without waiting for the first tick.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Attestor daemon started",
		slog.String("attestor", r.attestor.String()),
		slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.PollOnce(ctx); err != nil {
			r.log.Error("Poll failed", "err", err)
		}

		select {
		case <-ctx.Done():
			r.log.Info("Attestor daemon stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce fetches the pending worklist and endorses every unseen message.
func (r *Runner) PollOnce(ctx context.Context) error {
	pending, err := r.fetchPending(ctx)
	if err != nil {
		return err
	}

	worklist := lo.Filter(pending, func(id interfaces.MessageID, _ int) bool {
		_, done := r.seen[id]
		return !done
	})

	for _, messageID := range worklist {
		if err := r.endorse(ctx, messageID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) fetchPending(ctx context.Context) ([]interfaces.MessageID, error) {
	return backoff.RetryWithData(func() ([]interfaces.MessageID, error) {
		pending, err := r.client.PendingMessages(ctx)
		if err != nil {
			return nil, transientOrPermanent(err)
		}
		return pending, nil
	}, backoff.WithContext(r.newBackoff(), ctx))
}

func (r *Runner) endorse(ctx context.Context, messageID interfaces.MessageID) error {
	signature, err := keymanager.SignMessageID(r.key, messageID)
	if err != nil {
		return err
	}

	voteCount, err := backoff.RetryWithData(func() (int, error) {
		count, err := r.client.Attest(ctx, messageID, r.attestor, signature)
		if err != nil {
			return 0, transientOrPermanent(err)
		}
		return count, nil
	}, backoff.WithContext(r.newBackoff(), ctx))

	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		// A terminal rejection means this message will never accept our vote.
		// Mark it seen so the worklist does not retry it forever. Server-side
		// failures are left unseen and picked up again on the next poll.
		r.seen[messageID] = struct{}{}
		r.log.Warn("Attestation rejected",
			slog.String("messageID", messageID.String()),
			slog.Int("status", apiErr.StatusCode),
			slog.String("body", apiErr.Body))
		return nil
	} else if err != nil {
		return err
	}

	r.seen[messageID] = struct{}{}
	r.log.Info("Message endorsed",
		slog.String("messageID", messageID.String()),
		slog.Int("voteCount", voteCount))
	return nil
}

// transientOrPermanent wraps terminal API rejections so the backoff loop
// stops retrying them. Anything else, including 5xx responses and transport
// errors, stays retryable.
func transientOrPermanent(err error) error {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}
