// Package engine decides, for every canonical event, whether it conforms to
// its registered contract and where it goes next.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/parcelworks/eventgate/internal/bus"
	"github.com/parcelworks/eventgate/internal/domain"
	"github.com/parcelworks/eventgate/internal/ingress"
	"github.com/parcelworks/eventgate/internal/schema"
)

// Router orchestrates schema lookup, instance validation and downstream
// dispatch. Expected rejections (schema not found, validation failure) are
// data, not errors; only infrastructure faults reach the caller as errors.
type Router struct {
	registry *schema.Registry
	bus      bus.Publisher
	dlq      bus.DeadLetterSink // nil when no sink is configured
	logger   *slog.Logger
}

func NewRouter(registry *schema.Registry, publisher bus.Publisher, dlq bus.DeadLetterSink, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		bus:      publisher,
		dlq:      dlq,
		logger:   logger,
	}
}

// Route takes one canonical event through lookup → validate → publish.
// A returned error means an unreachable registry or bus; the event's fate is
// then undecided and the caller owns redelivery.
func (r *Router) Route(ctx context.Context, ev domain.CanonicalEvent) (domain.RoutingOutcome, error) {
	doc, err := r.registry.Get(ctx, ev.SchemaKey())
	if err != nil {
		if errors.Is(err, schema.ErrSchemaNotFound) {
			return r.reject(ctx, eventJSON(ev), err.Error()), nil
		}
		return domain.RoutingOutcome{}, err
	}

	if outcome := schema.Validate(doc, ev.Detail); !outcome.Valid {
		return r.reject(ctx, eventJSON(ev), outcome.Reason), nil
	}

	if err := r.bus.Publish(ctx, ev); err != nil {
		return domain.RoutingOutcome{}, fmt.Errorf("publishing accepted event %s: %w", ev.SchemaKey(), err)
	}

	r.logger.Info("event accepted",
		"source", ev.Source,
		"detail_type", ev.DetailType,
		"schema_version", ev.SchemaVersion,
	)
	return domain.RoutingOutcome{
		Status:    domain.StatusAccepted,
		EventType: ev.DetailType,
	}, nil
}

// RouteAll routes a normalized sequence, returning one outcome per record in
// input order. Records route concurrently; malformed records become
// rejections without blocking the rest. The first infrastructure fault
// aborts the batch.
func (r *Router) RouteAll(ctx context.Context, records iter.Seq[ingress.Record]) ([]domain.RoutingOutcome, error) {
	var collected []ingress.Record
	for rec := range records {
		collected = append(collected, rec)
	}

	outcomes := make([]domain.RoutingOutcome, len(collected))
	g, ctx := errgroup.WithContext(ctx)
	for i, rec := range collected {
		g.Go(func() error {
			if rec.Err != nil {
				outcomes[i] = r.reject(ctx, rec.Raw, rec.Err.Error())
				return nil
			}
			out, err := r.Route(ctx, rec.Event)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// reject computes the terminal rejection and archives it when a sink is
// configured. A sink failure is logged but never alters the outcome.
func (r *Router) reject(ctx context.Context, original json.RawMessage, reason string) domain.RoutingOutcome {
	outcome := domain.RoutingOutcome{
		Status: domain.StatusRejected,
		Reason: reason,
	}

	r.logger.Info("event rejected", "reason", reason)

	if r.dlq != nil {
		if err := r.dlq.Send(ctx, reason, original); err != nil {
			r.logger.Warn("dead-letter send failed", "reason", reason, "error", err)
		}
	}
	return outcome
}

func eventJSON(ev domain.CanonicalEvent) json.RawMessage {
	b, err := json.Marshal(ev)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return b
}
