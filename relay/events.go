package relay

import (
	"log/slog"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// LogEmitter is an interfaces.EventSink that writes lifecycle events to a
// structured logger. Used as the default sink by the server binaries.
type LogEmitter struct {
	log *slog.Logger
}

// NewLogEmitter creates an event sink logging to the provided logger.
func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

// ProposalCreated logs an accepted proposal.
func (e *LogEmitter) ProposalCreated(event interfaces.ProposalEvent) {
	e.log.Info("event: proposal created",
		slog.String("message_id", event.ID.String()),
		slog.String("destination_chain", event.DestinationChain.String()),
		slog.String("receiver", event.Receiver))
}

// AttestationRecorded logs a recorded endorsement with its running count.
func (e *LogEmitter) AttestationRecorded(event interfaces.AttestationEvent) {
	e.log.Info("event: attestation recorded",
		slog.String("message_id", event.ID.String()),
		slog.String("attestor", event.Attestor.String()),
		slog.Int("vote_count", event.VoteCount))
}

// MessageExecuted logs a completed execution.
func (e *LogEmitter) MessageExecuted(event interfaces.ExecutionEvent) {
	e.log.Info("event: message executed",
		slog.String("message_id", event.ID.String()),
		slog.String("destination_chain", event.DestinationChain.String()),
		slog.String("receiver", event.Receiver))
}
