package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/multisig/internal/principal"
)

// Kind names a wallet lifecycle event.
type Kind string

const (
	KindWalletCreated     Kind = "wallet_created"
	KindOwnerAdded        Kind = "owner_added"
	KindOwnerRemoved      Kind = "owner_removed"
	KindProposalCreated   Kind = "proposal_created"
	KindProposalApproved  Kind = "proposal_approved"
	KindProposalExecuted  Kind = "proposal_executed"
	KindProposalCancelled Kind = "proposal_cancelled"
)

// Event is emitted after a wallet transition has been committed.
type Event struct {
	Kind        Kind               `json:"kind"`
	Wallet      principal.Address  `json:"wallet"`
	Actor       principal.Address  `json:"actor"`
	ProposalID  *uint64            `json:"proposal_id,omitempty"`
	Destination *principal.Address `json:"destination,omitempty"`
	Amount      uint64             `json:"amount,omitempty"`
	Approvals   int                `json:"approvals,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Sink delivers events to downstream systems.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// LoggerSink writes events to the structured logger.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a sink backed by logger.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Publish logs the event at info level.
func (s *LoggerSink) Publish(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", string(event.Kind)),
		slog.String("wallet", event.Wallet.String()),
		slog.String("actor", event.Actor.String()),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.ProposalID != nil {
		attrs = append(attrs, slog.Uint64("proposal_id", *event.ProposalID))
	}
	if event.Amount > 0 {
		attrs = append(attrs, slog.Uint64("amount", event.Amount))
	}
	s.logger.Info("wallet event", attrs...)
	return nil
}

// RedisSink publishes JSON-encoded events on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink constructs a sink publishing on channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Publish encodes and publishes the event.
func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Fanout delivers every event to all sinks and joins their errors.
type Fanout []Sink

// Publish forwards event to each sink.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
