package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/message-relay-backend/api"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/metrics"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the relay API. It fronts the message
// registry and the attestation quorum and maps the relay error taxonomy onto
// HTTP status codes.
type Handler struct {
	registry interfaces.MessageRegistry
	log      *slog.Logger

	mu     sync.RWMutex
	quorum interfaces.AttestationQuorum
}

// NewHandler creates a new HTTP request handler fronting the given registry
// and quorum.
func NewHandler(registry interfaces.MessageRegistry, quorum interfaces.AttestationQuorum, log *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		quorum:   quorum,
		log:      log,
	}
}

// Quorum returns the current attestation quorum.
func (h *Handler) Quorum() interfaces.AttestationQuorum {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quorum
}

// SetQuorum swaps the attestation quorum on both the handler and the registry.
func (h *Handler) SetQuorum(quorum interfaces.AttestationQuorum) error {
	if quorum == nil {
		return interfaces.ErrInvalidConfiguration
	}
	if err := h.registry.SetQuorum(quorum); err != nil {
		return err
	}

	h.mu.Lock()
	h.quorum = quorum
	h.mu.Unlock()
	return nil
}

// statusFromError maps relay sentinel errors onto HTTP status codes. Ordering
// conflicts, duplicate votes and the execution guard are all conflicts;
// missing quorum is a retryable precondition failure; a destination handler
// failure is an upstream error.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrInvalidNonce),
		errors.Is(err, interfaces.ErrAlreadyExecuted),
		errors.Is(err, interfaces.ErrDuplicateVote),
		errors.Is(err, interfaces.ErrExecutionInProgress):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNotEnoughSignatures):
		return http.StatusPreconditionFailed
	case errors.Is(err, interfaces.ErrDeliveryFailed):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrInvalidSignature),
		errors.Is(err, interfaces.ErrInvalidConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeHex(value string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(value, "0x"))
}

func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandlePropose processes message proposal requests.
//
// URL format: POST /api/relay/propose
//
// Request body: JSON ProposeRequest with the hex-encoded proposal envelope.
//
// Response: JSON containing the deterministic message ID. Re-proposing an
// identical pending message returns the same ID.
func (h *Handler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var req api.ProposeRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chainKey, err := interfaces.NewChainKey(req.DestinationChain)
	if err != nil {
		http.Error(w, "Invalid destination chain: "+err.Error(), http.StatusBadRequest)
		return
	}

	payload, err := decodeHex(req.Payload)
	if err != nil {
		http.Error(w, "Invalid payload encoding", http.StatusBadRequest)
		return
	}

	attributes := make([][]byte, 0, len(req.Attributes))
	for _, attr := range req.Attributes {
		decoded, err := decodeHex(attr)
		if err != nil {
			http.Error(w, "Invalid attribute encoding", http.StatusBadRequest)
			return
		}
		attributes = append(attributes, decoded)
	}

	messageID, err := h.registry.Propose(r.Context(), chainKey, req.Receiver, payload, attributes)
	if err != nil {
		h.log.Error("Proposal rejected", "err", err, slog.String("destinationChain", chainKey.String()))
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	metrics.ProposalsTotal.Inc()
	writeJSON(w, h.log, api.ProposeResponse{MessageID: messageID.String()})
}

// HandleAttest records an attestor endorsement for a pending message.
//
// URL format: POST /api/relay/attest
//
// Request body: JSON AttestRequest with attestor address and the hex-encoded
// 65-byte signature over the raw message ID digest.
func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	var req api.AttestRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	messageID, err := interfaces.NewMessageIDFromHex(req.MessageID)
	if err != nil {
		http.Error(w, "Invalid message ID: "+err.Error(), http.StatusBadRequest)
		return
	}

	attestor, err := interfaces.NewAccountAddressFromHex(req.Attestor)
	if err != nil {
		http.Error(w, "Invalid attestor address: "+err.Error(), http.StatusBadRequest)
		return
	}

	signature, err := decodeHex(req.Signature)
	if err != nil {
		http.Error(w, "Invalid signature encoding", http.StatusBadRequest)
		return
	}

	quorum := h.Quorum()
	if err := quorum.Attest(attestor, messageID, signature); err != nil {
		h.log.Error("Attestation rejected", "err", err,
			slog.String("messageID", messageID.String()),
			slog.String("attestor", attestor.String()))
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	metrics.AttestationsTotal.Inc()
	writeJSON(w, h.log, api.AttestResponse{
		MessageID: messageID.String(),
		VoteCount: quorum.VoteCount(messageID),
	})
}

// HandleExecute triggers delivery of a message once quorum is reached.
//
// URL format: POST /api/relay/execute/{message_id}
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	messageID, err := interfaces.NewMessageIDFromHex(r.PathValue("message_id"))
	if err != nil {
		http.Error(w, "Invalid message ID: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.registry.Execute(r.Context(), messageID); err != nil {
		if errors.Is(err, interfaces.ErrDeliveryFailed) {
			metrics.DeliveryFailuresTotal.Inc()
		}
		h.log.Error("Execution failed", "err", err, slog.String("messageID", messageID.String()))
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	metrics.ExecutionsTotal.Inc()
	writeJSON(w, h.log, api.ExecuteResponse{
		MessageID: messageID.String(),
		State:     interfaces.StateExecuted.String(),
	})
}

// HandleGetMessage returns the stored view of a message.
//
// URL format: GET /api/relay/message/{message_id}
func (h *Handler) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := interfaces.NewMessageIDFromHex(r.PathValue("message_id"))
	if err != nil {
		http.Error(w, "Invalid message ID: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.registry.GetMessage(messageID)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	attributes := make([]string, 0, len(msg.Attributes))
	for _, attr := range msg.Attributes {
		attributes = append(attributes, hex.EncodeToString(attr))
	}

	writeJSON(w, h.log, api.MessageResponse{
		MessageID:        msg.ID.String(),
		DestinationChain: msg.DestinationChain.String(),
		Receiver:         msg.Receiver,
		Payload:          hex.EncodeToString(msg.Payload),
		Attributes:       attributes,
		Nonce:            msg.Nonce,
		Sender:           msg.Sender.String(),
		Threshold:        msg.Threshold,
		VoteCount:        h.Quorum().VoteCount(msg.ID),
		State:            msg.State.String(),
		CreatedAt:        msg.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleNonce returns the next expected proposal nonce.
//
// URL format: GET /api/relay/nonce
func (h *Handler) HandleNonce(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, api.NonceResponse{Nonce: h.registry.Nonce()})
}

// HandlePendingMessages lists message IDs still awaiting execution.
//
// URL format: GET /api/relay/messages/pending
func (h *Handler) HandlePendingMessages(w http.ResponseWriter, r *http.Request) {
	pending := h.registry.PendingMessages()
	ids := make([]string, 0, len(pending))
	for _, id := range pending {
		ids = append(ids, id.String())
	}

	writeJSON(w, h.log, api.PendingMessagesResponse{MessageIDs: ids})
}
