package httpserver

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"

	"github.com/ruteri/message-relay-backend/api"
	"github.com/ruteri/message-relay-backend/destination"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/quorum"
	"github.com/ruteri/message-relay-backend/relay"
)

// AdminHandler processes owner-restricted configuration requests.
//
// Every admin request must carry a secp256k1 signature over the keccak256
// hash of the request body in the X-Relay-Admin-Signature header. The
// recovered address must match the configured owner, so admin authority is a
// key, not a network position.
type AdminHandler struct {
	owner    interfaces.AccountAddress
	handler  *Handler
	registry interfaces.MessageRegistry
	resolver *destination.Resolver
	log      *slog.Logger
}

// NewAdminHandler creates an admin handler restricted to the given owner address.
func NewAdminHandler(owner interfaces.AccountAddress, handler *Handler, registry interfaces.MessageRegistry, resolver *destination.Resolver, log *slog.Logger) *AdminHandler {
	if resolver == nil {
		resolver = destination.NewResolver("", log)
	}

	return &AdminHandler{
		owner:    owner,
		handler:  handler,
		registry: registry,
		resolver: resolver,
		log:      log,
	}
}

// AdminRouter returns the router for the owner-restricted admin API.
func (h *AdminHandler) AdminRouter() chi.Router {
	r := chi.NewRouter()

	r.Post("/destination", h.handleRegisterDestination)
	r.Post("/attestor", h.handleAddAttestor)
	r.Post("/quorum", h.handleSetQuorum)

	return r
}

// verifyOwner checks the admin signature header against the request body.
// The body is restored for the downstream handler.
func (h *AdminHandler) verifyOwner(r *http.Request) bool {
	signatureHex := r.Header.Get(api.AdminSignatureHeader)
	if signatureHex == "" {
		return false
	}

	signature, err := decodeHex(signatureHex)
	if err != nil || len(signature) != crypto.SignatureLength {
		h.log.Warn("Admin authentication failed: malformed signature header")
		return false
	}

	bodyBytes, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil {
		h.log.Error("Failed to read admin request body", "err", err)
		return false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	digest := crypto.Keccak256Hash(bodyBytes)
	pubkey, err := crypto.SigToPub(digest.Bytes(), signature)
	if err != nil {
		h.log.Warn("Admin authentication failed: signature recovery error", "err", err)
		return false
	}

	recovered := interfaces.AccountAddress(crypto.PubkeyToAddress(*pubkey))
	if !recovered.Equal(h.owner) {
		h.log.Warn("Admin authentication failed: signer is not the owner",
			slog.String("recovered", recovered.String()))
		return false
	}

	return true
}

// handleRegisterDestination registers a destination handler for a routing key.
// The endpoint is either given directly or discovered from the domain's DNS
// SRV record.
//
// Endpoint: POST /api/admin/destination
// Body: {"chain_key": "...", "endpoint": "http://..."} or
// {"chain_key": "...", "domain": "handler.example.org"}
func (h *AdminHandler) handleRegisterDestination(w http.ResponseWriter, r *http.Request) {
	if !h.verifyOwner(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.RegisterDestinationRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chainKey, err := interfaces.NewChainKey(req.ChainKey)
	if err != nil {
		http.Error(w, "Invalid chain key: "+err.Error(), http.StatusBadRequest)
		return
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		if req.Domain == "" {
			http.Error(w, "Either endpoint or domain is required", http.StatusBadRequest)
			return
		}
		endpoint, err = h.resolver.ResolveEndpoint(req.Domain)
		if err != nil {
			h.log.Error("Destination discovery failed", "err", err, slog.String("domain", req.Domain))
			http.Error(w, "Destination discovery failed: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	dest, err := destination.NewHTTPDestination(endpoint, h.log)
	if err != nil {
		http.Error(w, "Invalid endpoint: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.registry.RegisterDestination(chainKey, dest); err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	h.log.Info("Destination registered",
		slog.String("chainKey", chainKey.String()),
		slog.String("endpoint", endpoint))
	writeJSON(w, h.log, api.StatusResponse{Status: "registered"})
}

// handleAddAttestor adds an address to the attestor set.
//
// Endpoint: POST /api/admin/attestor
// Body: {"attestor": "<40-char hex>"}
func (h *AdminHandler) handleAddAttestor(w http.ResponseWriter, r *http.Request) {
	if !h.verifyOwner(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.AddAttestorRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	attestor, err := interfaces.NewAccountAddressFromHex(req.Attestor)
	if err != nil {
		http.Error(w, "Invalid attestor address: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.handler.Quorum().AddAttestor(attestor); err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	h.log.Info("Attestor added", slog.String("attestor", attestor.String()))
	writeJSON(w, h.log, api.StatusResponse{Status: "added"})
}

// handleSetQuorum replaces the attestation quorum with a fresh one seeded
// with the listed attestors. Previously recorded votes are discarded; frozen
// thresholds on pending messages are unaffected.
//
// Endpoint: POST /api/admin/quorum
// Body: {"attestors": ["<40-char hex>", ...]}
func (h *AdminHandler) handleSetQuorum(w http.ResponseWriter, r *http.Request) {
	if !h.verifyOwner(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.SetQuorumRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	attestors := make([]interfaces.AccountAddress, 0, len(req.Attestors))
	for _, attestorHex := range req.Attestors {
		attestor, err := interfaces.NewAccountAddressFromHex(attestorHex)
		if err != nil {
			http.Error(w, "Invalid attestor address: "+err.Error(), http.StatusBadRequest)
			return
		}
		attestors = append(attestors, attestor)
	}

	newQuorum := quorum.New(attestors, h.log, relay.NewLogEmitter(h.log))
	if err := h.handler.SetQuorum(newQuorum); err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	h.log.Info("Quorum replaced", "attestors", len(attestors))
	writeJSON(w, h.log, api.StatusResponse{Status: "replaced"})
}
