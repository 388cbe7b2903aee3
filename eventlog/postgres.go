package eventlog

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"figgie.com/server/game"
	"figgie.com/server/logging"
)

var postgresLogger = log.With().Str("logger_name", "eventlog::postgres").Logger()

// PostgresSink writes the stream into a small analytics schema: every
// event lands in round_events, and rounds, round_players, trades and
// round_results get one row per fact for direct SQL querying.
type PostgresSink struct {
	db *sqlx.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rounds (
	round_id     TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ,
	duration_sec INTEGER,
	goal_suit    TEXT,
	completed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS round_players (
	round_id        TEXT NOT NULL,
	player_id       TEXT NOT NULL,
	name            TEXT NOT NULL,
	initial_balance INTEGER NOT NULL,
	PRIMARY KEY (round_id, player_id)
);
CREATE TABLE IF NOT EXISTS round_events (
	id         BIGSERIAL PRIMARY KEY,
	round_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	at         TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	id       BIGSERIAL PRIMARY KEY,
	round_id TEXT NOT NULL,
	at       TIMESTAMPTZ NOT NULL,
	buyer    TEXT NOT NULL,
	seller   TEXT NOT NULL,
	suit     TEXT NOT NULL,
	price    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS round_results (
	round_id      TEXT NOT NULL,
	player_id     TEXT NOT NULL,
	goal_count    INTEGER NOT NULL,
	bonus         INTEGER NOT NULL,
	pot_share     INTEGER NOT NULL,
	final_balance INTEGER NOT NULL,
	PRIMARY KEY (round_id, player_id)
);
CREATE INDEX IF NOT EXISTS idx_round_events_round ON round_events (round_id, id);
CREATE INDEX IF NOT EXISTS idx_trades_round ON trades (round_id);
`

func NewPostgresSink(connStr string) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s := &PostgresSink{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) initSchema() error {
	_, err := s.db.Exec(postgresSchema)
	return err
}

func (s *PostgresSink) Emit(ev game.Event) {
	if err := s.store(ev); err != nil {
		postgresLogger.Error().Err(err).
			Str(logging.RoundIDKey, ev.RoundID).
			Str(logging.SinkKey, "postgres").
			Str("eventType", string(ev.Type)).
			Msg("Dropping event after postgres error")
	}
}

func (s *PostgresSink) store(ev game.Event) error {
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO round_events (round_id, event_type, at, payload) VALUES ($1, $2, $3, $4)`,
		ev.RoundID, string(ev.Type), ev.At, b)
	if err != nil {
		return err
	}
	switch ev.Type {
	case game.EventRoundStarted:
		return s.storeRoundStarted(ev)
	case game.EventTransaction:
		return s.storeTransaction(ev)
	case game.EventRoundCompleted:
		return s.storeRoundCompleted(ev)
	}
	return nil
}

func (s *PostgresSink) storeRoundStarted(ev game.Event) error {
	p, ok := ev.Payload.(game.RoundStartedPayload)
	if !ok {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO rounds (round_id, started_at, duration_sec, goal_suit)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (round_id) DO NOTHING`,
		ev.RoundID, ev.At, p.DurationSec, string(p.DealFingerprint.GoalSuit))
	if err != nil {
		return err
	}
	for pid, name := range p.Players {
		_, err := s.db.Exec(
			`INSERT INTO round_players (round_id, player_id, name, initial_balance)
			 VALUES ($1, $2, $3, $4) ON CONFLICT (round_id, player_id) DO NOTHING`,
			ev.RoundID, pid, name, p.InitialBalances[pid])
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSink) storeTransaction(ev game.Event) error {
	p, ok := ev.Payload.(game.TransactionPayload)
	if !ok {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO trades (round_id, at, buyer, seller, suit, price)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.RoundID, ev.At, p.Buyer, p.Seller, string(p.Suit), p.Price)
	return err
}

func (s *PostgresSink) storeRoundCompleted(ev game.Event) error {
	p, ok := ev.Payload.(game.RoundCompletedPayload)
	if !ok {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE rounds SET completed_at = $1 WHERE round_id = $2`,
		ev.At, ev.RoundID)
	if err != nil {
		return err
	}
	if p.Results == nil {
		return nil
	}
	shares := make(map[string]int)
	for _, w := range p.Results.Winners {
		shares[w] = p.Results.ShareEach
	}
	for pid, bal := range p.FinalBalances {
		_, err := s.db.Exec(
			`INSERT INTO round_results (round_id, player_id, goal_count, bonus, pot_share, final_balance)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (round_id, player_id) DO UPDATE SET final_balance = EXCLUDED.final_balance`,
			ev.RoundID, pid, p.Results.Counts[pid], p.Results.Bonuses[pid], shares[pid], bal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
