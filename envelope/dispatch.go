package envelope

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/registry"
	"github.com/anirudhraja/devwire/wire"
)

// Dispatcher routes frames to the schema registered for their wire identity.
type Dispatcher struct {
	Registry *registry.Registry
	Config   wire.Config
}

// NewDispatcher returns a dispatcher using the global wire configuration.
func NewDispatcher(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{Registry: reg, Config: wire.CurrentConfig()}
}

// Decode unframes frame and decodes its body with the schema its wire
// identity names.
func (d *Dispatcher) Decode(frame []byte) (*record.Record, error) {
	id, body, err := Unmarshal(frame)
	if err != nil {
		return nil, err
	}
	return d.DecodeBody(id, body)
}

// DecodeBody decodes an already unframed body.
func (d *Dispatcher) DecodeBody(id uint32, body []byte) (*record.Record, error) {
	msg, err := d.Registry.GetMessageByWireID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: wire id %d", ErrUnknownMessageType, id)
	}
	logger.Logger.Debug("dispatching frame",
		zap.Uint32("wire_id", id),
		zap.String("message", msg.Name),
		zap.Int("body_len", len(body)))

	// body offsets are reported relative to the start of the frame body
	return wire.NewDecoderWithResolver(body, d.Registry).WithConfig(d.Config).DecodeWithSchema(msg)
}

// Encode encodes rec and frames it under its schema's wire identity.
func (d *Dispatcher) Encode(rec *record.Record) ([]byte, error) {
	id := rec.Schema().WireIdentity()
	if id == 0 {
		return nil, fmt.Errorf("%w: %s has no wire identity", ErrUnknownMessageType, rec.Schema().Name)
	}
	body, err := wire.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return Marshal(id, body)
}
