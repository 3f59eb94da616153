package runtime

import (
	"context"

	jsoncodec "github.com/relaykit/deferral/internal/runtime/jsoncodec"
	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
)

// carryStateKey is the fixed persistence key for the single message carried
// across a deliberate host restart.
const carryStateKey = "deferral.restart-carry"

type carryBlob struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// persistCarry writes the message to the state store so the next startup can
// re-inject it. Called immediately before a restart.
func (s *Service) persistCarry(ctx context.Context, msg Message) error {
	blob, err := jsoncodec.Marshal(carryBlob{ID: msg.ID, URI: msg.URI})
	if err != nil {
		return err
	}
	return s.state.Put(ctx, carryStateKey, blob, s.Conf.EffectiveCarryScope())
}

// consumeCarry reads and clears the carried message. A missing or malformed
// blob yields no message rather than failing startup.
func (s *Service) consumeCarry(ctx context.Context) (Message, bool) {
	scope := s.Conf.EffectiveCarryScope()

	blob, err := s.state.Get(ctx, carryStateKey, scope)
	if err != nil {
		s.Logger.Error("Failed to read restart carry", err, nil)
		return Message{}, false
	}
	if len(blob) == 0 {
		return Message{}, false
	}
	if err := s.state.Remove(ctx, carryStateKey, scope); err != nil {
		s.Logger.Error("Failed to clear restart carry", err, nil)
	}

	var carried carryBlob
	if err := jsoncodec.Unmarshal(blob, &carried); err != nil || carried.URI == "" {
		s.Logger.Debug("Discarding malformed restart carry", loggingpkg.LogFields{"size": len(blob)})
		return Message{}, false
	}
	return reviveMessage(carried.ID, carried.URI), true
}

// replayCarry re-injects the carried message. The user consented before the
// restart, so consent is not requested again.
func (s *Service) replayCarry(ctx context.Context) {
	msg, ok := s.consumeCarry(ctx)
	if !ok {
		return
	}
	s.Logger.Info("Replaying message carried across restart", loggingpkg.LogFields{"message_id": msg.ID})
	s.routeMessage(ctx, msg, true)
}
