package runtime

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
)

var tracer = otel.Tracer("github.com/relaykit/deferral")

// Route decides what happens to an inbound addressed message. It returns true
// when the message belongs to this system and its handling is committed (even
// if resolution continues asynchronously), and false when the message is not
// this system's concern or when delivery belongs to a registration that raced
// this call.
func (s *Service) Route(ctx context.Context, uri string, preConfirmed bool) bool {
	return s.routeMessage(ctx, NewMessage(uri), preConfirmed)
}

func (s *Service) routeMessage(ctx context.Context, msg Message, preConfirmed bool) bool {
	addr, ok := msg.Address()
	if !ok {
		s.metrics.RecordRouted(OutcomeUnrelated)
		return false
	}

	ctx, span := tracer.Start(ctx, "deferral.route", trace.WithAttributes(
		attribute.String("deferral.address", addr.String()),
		attribute.String("deferral.message_id", msg.ID),
	))
	defer span.End()

	log := s.Logger.With(loggingpkg.LogFields{"address": addr.String(), "message_id": msg.ID})

	// A binding only counts for direct dispatch when it existed before this
	// call began. One that shows up mid-call belongs to the registration's
	// drain, which keeps delivery exactly-once when routing and registration
	// race.
	wasBound := s.registry.Bound(addr)

	rec, err := s.resolver.ResolveActive(ctx, addr)
	if err != nil {
		log.Error("Failed to resolve subscriber", err, nil)
		s.notifier.Notify(SeverityError, fmt.Sprintf("Could not resolve %s: %v", addr, err))
		s.metrics.RecordRouted(OutcomeUnresolved)
		return true
	}
	if rec == nil {
		s.metrics.RecordRouted(OutcomeUnresolved)
		log.Info("Subscriber unknown, starting activation resolution", nil)
		go s.resolveUnhandled(context.WithoutCancel(ctx), msg, addr)
		return true
	}

	if !preConfirmed {
		prompt := fmt.Sprintf("Allow %s to receive this message?", rec.Label())
		confirmed, err := s.confirmer.Confirm(ctx, prompt, msg.Preview(), "Allow")
		if err != nil {
			log.Error("Confirmation failed", err, nil)
		}
		if err != nil || !confirmed {
			s.metrics.RecordRouted(OutcomeDeclined)
			log.Info("Message declined", nil)
			return true
		}
	}

	unlock := s.locks.Lock(addr)
	handler := s.registry.Lookup(addr)
	if handler == nil {
		s.pending.Enqueue(addr, msg)
		unlock()
		s.metrics.RecordBuffered()
		log.Info("Buffered message awaiting registration", loggingpkg.LogFields{
			"pending": s.pending.Len(addr),
		})
		if err := s.activator.RequestActivation(ctx, addr); err != nil {
			log.Error("Activation request failed", err, nil)
		}
		return true
	}
	unlock()

	if !wasBound {
		s.metrics.RecordRouted(OutcomeDeferred)
		log.Debug("Binding appeared mid-call, deferring to its drain", nil)
		return false
	}

	delivered := s.dispatch(ctx, handler, msg, log)
	if delivered {
		s.metrics.RecordRouted(OutcomeDelivered)
	} else {
		s.metrics.RecordRouted(OutcomeRejected)
	}
	return delivered
}

func (s *Service) dispatch(ctx context.Context, handler Handler, msg Message, log loggingpkg.ServiceLogger) bool {
	ctx, span := tracer.Start(ctx, "deferral.dispatch")
	defer span.End()

	accepted, err := handler.HandleMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
		log.Error("Handler failed", err, nil)
		return false
	}
	if !accepted {
		log.Debug("Handler did not accept message", nil)
	}
	return accepted
}
