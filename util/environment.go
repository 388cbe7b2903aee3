package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var environmentLogger = log.With().Str("logger_name", "util::environment").Logger()

type serverEnvironment struct {
	Port            string
	NumPlayers      string
	TradingDuration string
	StartingBalance string
	PotTarget       string
	GoalBonus       string
	GameConfigFile  string
	EventSinks      string
	StatePollRate   string
	RedisHost       string
	RedisPort       string
	RedisPW         string
	RedisDB         string
	NatsURL         string
	NatsSubjectPrefix string
	PostgresHost    string
	PostgresPort    string
	PostgresDB      string
	PostgresUser    string
	PostgresPW      string
}

// ServerEnvironment is a helper object for accessing environment variables.
var ServerEnvironment = &serverEnvironment{
	Port:            "PORT",
	NumPlayers:      "NUM_PLAYERS",
	TradingDuration: "TRADING_DURATION",
	StartingBalance: "STARTING_BALANCE",
	PotTarget:       "POT_TARGET",
	GoalBonus:       "GOAL_BONUS",
	GameConfigFile:  "GAME_CONFIG_FILE",
	EventSinks:      "EVENT_SINKS",
	StatePollRate:   "STATE_POLL_RATE",
	RedisHost:       "REDIS_HOST",
	RedisPort:       "REDIS_PORT",
	RedisPW:         "REDIS_PW",
	RedisDB:         "REDIS_DB",
	NatsURL:         "NATS_URL",
	NatsSubjectPrefix: "NATS_SUBJECT_PREFIX",
	PostgresHost:    "POSTGRES_HOST",
	PostgresPort:    "POSTGRES_PORT",
	PostgresDB:      "POSTGRES_DB",
	PostgresUser:    "POSTGRES_USER",
	PostgresPW:      "POSTGRES_PASSWORD",
}

func (s *serverEnvironment) getIntWithDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		msg := fmt.Sprintf("Invalid value for %s: %s", key, v)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return n
}

func (s *serverEnvironment) GetPort() int {
	return s.getIntWithDefault(s.Port, 5000)
}

func (s *serverEnvironment) GetNumPlayers() int {
	n := s.getIntWithDefault(s.NumPlayers, 4)
	if n != 4 && n != 5 {
		msg := fmt.Sprintf("%s must be 4 or 5", s.NumPlayers)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return n
}

// GetTradingDuration returns the real trading duration in seconds.
func (s *serverEnvironment) GetTradingDuration() int {
	return s.getIntWithDefault(s.TradingDuration, 240)
}

func (s *serverEnvironment) GetStartingBalance() int {
	return s.getIntWithDefault(s.StartingBalance, 350)
}

func (s *serverEnvironment) GetPotTarget() int {
	return s.getIntWithDefault(s.PotTarget, 200)
}

func (s *serverEnvironment) GetGoalBonus() int {
	return s.getIntWithDefault(s.GoalBonus, 10)
}

func (s *serverEnvironment) GetGameConfigFile() string {
	return os.Getenv(s.GameConfigFile)
}

// GetEventSinks returns the configured sink names (memory, redis, nats, postgres).
func (s *serverEnvironment) GetEventSinks() []string {
	v := os.Getenv(s.EventSinks)
	if v == "" {
		return []string{"memory"}
	}
	parts := strings.Split(v, ",")
	sinks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			sinks = append(sinks, p)
		}
	}
	return sinks
}

// GetStatePollRate returns the per-player /state requests per second limit.
// Zero disables the limiter.
func (s *serverEnvironment) GetStatePollRate() int {
	return s.getIntWithDefault(s.StatePollRate, 0)
}

func (s *serverEnvironment) GetRedisHost() string {
	host := os.Getenv(s.RedisHost)
	if host == "" {
		msg := fmt.Sprintf("%s is not defined", s.RedisHost)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return host
}

func (s *serverEnvironment) GetRedisPort() int {
	return s.getIntWithDefault(s.RedisPort, 6379)
}

func (s *serverEnvironment) GetRedisPW() string {
	return os.Getenv(s.RedisPW)
}

func (s *serverEnvironment) GetRedisDB() int {
	return s.getIntWithDefault(s.RedisDB, 0)
}

func (s *serverEnvironment) GetNatsURL() string {
	url := os.Getenv(s.NatsURL)
	if url == "" {
		msg := fmt.Sprintf("%s is not defined", s.NatsURL)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return url
}

func (s *serverEnvironment) GetNatsSubjectPrefix() string {
	prefix := os.Getenv(s.NatsSubjectPrefix)
	if prefix == "" {
		return "figgie"
	}
	return prefix
}

func (s *serverEnvironment) GetPostgresConnStr() string {
	host := os.Getenv(s.PostgresHost)
	if host == "" {
		msg := fmt.Sprintf("%s is not defined", s.PostgresHost)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	port := s.getIntWithDefault(s.PostgresPort, 5432)
	db := os.Getenv(s.PostgresDB)
	user := os.Getenv(s.PostgresUser)
	pw := os.Getenv(s.PostgresPW)
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, pw, db)
}
