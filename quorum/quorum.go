package quorum

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/message-relay-backend/interfaces"
)

const (
	// BaselineThreshold is the signature count required for ordinary messages.
	BaselineThreshold = 1

	// ElevatedThreshold is the signature count required for high-impact messages.
	ElevatedThreshold = 2

	// ImpactAttributeKey is the well-known attribute key carrying the impact
	// classification. The first decodable attribute with this key wins.
	ImpactAttributeKey = "impact"
)

// elevatedImpactValue marks a message as high impact.
var elevatedImpactValue = []byte("high")

// SignerQuorum implements interfaces.AttestationQuorum over a fixed, add-only
// set of secp256k1 signer addresses. Endorsements are recorded per message ID
// and counted monotonically; no failure path mutates state.
type SignerQuorum struct {
	mu        sync.RWMutex
	attestors map[interfaces.AccountAddress]struct{}
	votes     map[interfaces.MessageID]map[interfaces.AccountAddress]struct{}

	log    *slog.Logger
	events interfaces.EventSink
}

// New creates a quorum with the provided initial attestor set.
func New(attestors []interfaces.AccountAddress, log *slog.Logger, events interfaces.EventSink) *SignerQuorum {
	if log == nil {
		log = slog.Default()
	}

	set := make(map[interfaces.AccountAddress]struct{}, len(attestors))
	for _, attestor := range attestors {
		set[attestor] = struct{}{}
	}

	return &SignerQuorum{
		attestors: set,
		votes:     make(map[interfaces.MessageID]map[interfaces.AccountAddress]struct{}),
		log:       log,
		events:    events,
	}
}

// IsAuthorized reports whether the attestor is in the registry.
func (q *SignerQuorum) IsAuthorized(attestor interfaces.AccountAddress) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, ok := q.attestors[attestor]
	return ok
}

// AddAttestor registers an additional authorized attestor. The set is
// add-only; re-adding an existing attestor is a no-op.
func (q *SignerQuorum) AddAttestor(attestor interfaces.AccountAddress) error {
	if attestor == (interfaces.AccountAddress{}) {
		return fmt.Errorf("%w: zero attestor address", interfaces.ErrInvalidConfiguration)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.attestors[attestor] = struct{}{}
	q.log.Info("Attestor registered", slog.String("attestor", attestor.String()))
	return nil
}

// Attest records an endorsement of messageID by the attestor. The signature
// must be a 65-byte secp256k1 signature over the raw message ID digest that
// recovers to the attestor's own address. An attestor may vote at most once
// per message.
func (q *SignerQuorum) Attest(attestor interfaces.AccountAddress, messageID interfaces.MessageID, signature []byte) error {
	if !q.IsAuthorized(attestor) {
		return fmt.Errorf("%w: %s", interfaces.ErrUnauthorized, attestor)
	}

	recovered, err := RecoverSigner(messageID, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidSignature, err)
	}
	if !recovered.Equal(attestor) {
		return fmt.Errorf("%w: recovered %s, claimed %s", interfaces.ErrInvalidSignature, recovered, attestor)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	voters, ok := q.votes[messageID]
	if !ok {
		voters = make(map[interfaces.AccountAddress]struct{})
		q.votes[messageID] = voters
	}

	if _, voted := voters[attestor]; voted {
		return fmt.Errorf("%w: %s on %s", interfaces.ErrDuplicateVote, attestor, messageID)
	}

	voters[attestor] = struct{}{}
	count := len(voters)

	q.log.Info("Attestation recorded",
		slog.String("message_id", messageID.String()),
		slog.String("attestor", attestor.String()),
		slog.Int("vote_count", count))

	if q.events != nil {
		q.events.AttestationRecorded(interfaces.AttestationEvent{
			ID:        messageID,
			Attestor:  attestor,
			VoteCount: count,
		})
	}

	return nil
}

// VoteCount returns the number of distinct recorded endorsements for a message.
func (q *SignerQuorum) VoteCount(messageID interfaces.MessageID) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.votes[messageID])
}

// DeriveThreshold computes the required signature count from the attribute
// list. Attributes are scanned in order and the first one decoding to the
// impact key wins; a "high" impact value requires the elevated threshold.
// Undecodable or unrelated attributes are skipped, and an absent impact key
// yields the baseline threshold. The function is deterministic and
// side-effect-free so callers can freeze its result at proposal time.
func (q *SignerQuorum) DeriveThreshold(attributes [][]byte) int {
	for _, attribute := range attributes {
		key, value, err := interfaces.DecodeAttribute(attribute)
		if err != nil {
			continue
		}
		if key != ImpactAttributeKey {
			continue
		}

		if bytes.Equal(value, elevatedImpactValue) {
			return ElevatedThreshold
		}
		return BaselineThreshold
	}

	return BaselineThreshold
}

// RecoverSigner recovers the signer address from a 65-byte [R || S || V]
// signature over the raw message ID digest.
func RecoverSigner(messageID interfaces.MessageID, signature []byte) (interfaces.AccountAddress, error) {
	if len(signature) != crypto.SignatureLength {
		return interfaces.AccountAddress{}, fmt.Errorf("invalid signature length %d, want %d", len(signature), crypto.SignatureLength)
	}

	pubkey, err := crypto.SigToPub(messageID.Bytes(), signature)
	if err != nil {
		return interfaces.AccountAddress{}, fmt.Errorf("failed to recover signer: %w", err)
	}

	addr := crypto.PubkeyToAddress(*pubkey)
	return interfaces.AccountAddress(addr), nil
}
