// Package gameconf loads an optional YAML file overriding the round
// parameters, for experiment runs that vary durations and bankrolls
// without touching the environment.
package gameconf

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"figgie.com/server/game"
)

// Config mirrors the tunable round parameters. Zero values mean "keep
// the configured default".
type Config struct {
	NumPlayers         int `yaml:"numPlayers"`
	TradingDurationSec int `yaml:"tradingDurationSec"`
	StartingBalance    int `yaml:"startingBalance"`
	PotTarget          int `yaml:"potTarget"`
	GoalBonus          int `yaml:"goalBonus"`
}

func Load(fileName string) (*Config, error) {
	bytes, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading game config file [%s]", fileName)
	}
	return ParseBytes(bytes)
}

func ParseBytes(data []byte) (*Config, error) {
	var conf Config
	err := yaml.Unmarshal(data, &conf)
	if err != nil {
		return nil, errors.Wrap(err, "Error parsing game config")
	}
	if conf.NumPlayers != 0 && conf.NumPlayers != 4 && conf.NumPlayers != 5 {
		return nil, errors.Errorf("numPlayers must be 4 or 5, got %d", conf.NumPlayers)
	}
	return &conf, nil
}

// Apply overlays the non-zero fields onto a round config.
func (c *Config) Apply(rc *game.RoundConfig) {
	if c.NumPlayers != 0 {
		rc.NumPlayers = c.NumPlayers
	}
	if c.TradingDurationSec != 0 {
		rc.TradingDuration = time.Duration(c.TradingDurationSec) * time.Second
	}
	if c.StartingBalance != 0 {
		rc.StartingBalance = c.StartingBalance
	}
	if c.PotTarget != 0 {
		rc.PotTarget = c.PotTarget
	}
	if c.GoalBonus != 0 {
		rc.GoalBonus = c.GoalBonus
	}
}
