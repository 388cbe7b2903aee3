package eventlog

import (
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"figgie.com/server/game"
	"figgie.com/server/logging"
)

var natsLogger = log.With().Str("logger_name", "eventlog::nats").Logger()

// NatsSink publishes each event on <prefix>.<round_id>.<event_type>,
// letting observers subscribe to a whole round or to one event type
// across rounds with wildcards.
type NatsSink struct {
	nc            *natsgo.Conn
	subjectPrefix string
}

func NewNatsSink(url string, subjectPrefix string) (*NatsSink, error) {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return nil, err
	}
	natsLogger.Info().
		Str("url", url).
		Str("subjectPrefix", subjectPrefix).
		Msg("Connected to NATS")
	return &NatsSink{nc: nc, subjectPrefix: subjectPrefix}, nil
}

func (n *NatsSink) subject(ev game.Event) string {
	return fmt.Sprintf("%s.%s.%s", n.subjectPrefix, ev.RoundID, ev.Type)
}

func (n *NatsSink) Emit(ev game.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		natsLogger.Error().Err(err).
			Str(logging.RoundIDKey, ev.RoundID).
			Msg("Could not marshal event")
		return
	}
	if err := n.nc.Publish(n.subject(ev), b); err != nil {
		natsLogger.Error().Err(err).
			Str(logging.RoundIDKey, ev.RoundID).
			Str(logging.SinkKey, "nats").
			Msg("Dropping event after nats error")
	}
}

func (n *NatsSink) Close() {
	n.nc.Close()
}
