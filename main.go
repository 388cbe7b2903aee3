package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"

	"figgie.com/server/eventlog"
	"figgie.com/server/game"
	"figgie.com/server/gameconf"
	"figgie.com/server/logging"
	"figgie.com/server/rest"
	"figgie.com/server/util"
	"figgie.com/server/util/random"
)

var mainLogger = logging.GetZeroLogger("main::main", nil)

func main() {
	// Global random seed for anything outside the per-round PRNGs.
	rand.Seed(random.NewSeed())

	if err := run(); err != nil {
		mainLogger.Error().Msg(err.Error())
		os.Exit(1)
	}
}

func run() error {
	env := util.ServerEnvironment
	cfg := game.RoundConfig{
		NumPlayers:      env.GetNumPlayers(),
		TradingDuration: time.Duration(env.GetTradingDuration()) * time.Second,
		StartingBalance: env.GetStartingBalance(),
		PotTarget:       env.GetPotTarget(),
		GoalBonus:       env.GetGoalBonus(),
	}

	if fileName := env.GetGameConfigFile(); fileName != "" {
		conf, err := gameconf.Load(fileName)
		if err != nil {
			return errors.Wrap(err, "Error while loading game config file")
		}
		conf.Apply(&cfg)
		mainLogger.Info().Str("file", fileName).Msg("Applied game config overrides")
	}

	sink, err := buildSink(env.GetEventSinks())
	if err != nil {
		return errors.Wrap(err, "Error while creating event sinks")
	}

	engine := game.NewEngine(cfg, game.RealClock(), sink)
	defer engine.Close()

	rest.RunRestServer(engine, env.GetPort(), env.GetStatePollRate())
	return nil
}

func buildSink(names []string) (game.EventSink, error) {
	env := util.ServerEnvironment
	sinks := make([]game.EventSink, 0, len(names))
	for _, name := range names {
		switch name {
		case "memory":
			sinks = append(sinks, eventlog.NewMemorySink())
		case "redis":
			s, err := eventlog.NewRedisSink(
				env.GetRedisHost(), env.GetRedisPort(), env.GetRedisPW(), env.GetRedisDB())
			if err != nil {
				return nil, errors.Wrap(err, "Could not connect to redis")
			}
			sinks = append(sinks, s)
		case "nats":
			s, err := eventlog.NewNatsSink(env.GetNatsURL(), env.GetNatsSubjectPrefix())
			if err != nil {
				return nil, errors.Wrap(err, "Could not connect to nats")
			}
			sinks = append(sinks, s)
		case "postgres":
			s, err := eventlog.NewPostgresSink(env.GetPostgresConnStr())
			if err != nil {
				return nil, errors.Wrap(err, "Could not connect to postgres")
			}
			sinks = append(sinks, s)
		default:
			return nil, errors.Errorf("Unknown event sink [%s]", name)
		}
		mainLogger.Info().Str(logging.SinkKey, name).Msg("Event sink enabled")
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return eventlog.NewMultiSink(sinks...), nil
}
