package gameconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figgie.com/server/game"
)

func TestParseBytes(t *testing.T) {
	data := []byte(`
numPlayers: 5
tradingDurationSec: 60
startingBalance: 400
`)
	conf, err := ParseBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 5, conf.NumPlayers)
	assert.Equal(t, 60, conf.TradingDurationSec)
	assert.Equal(t, 400, conf.StartingBalance)
	assert.Equal(t, 0, conf.PotTarget)
}

func TestParseBytesRejectsBadNumPlayers(t *testing.T) {
	_, err := ParseBytes([]byte(`numPlayers: 7`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numPlayers must be 4 or 5")
}

func TestParseBytesRejectsGarbage(t *testing.T) {
	_, err := ParseBytes([]byte(`{{nope`))
	assert.Error(t, err)
}

func TestApplyOverlaysNonZeroFields(t *testing.T) {
	conf := &Config{TradingDurationSec: 60, PotTarget: 100}
	rc := game.DefaultRoundConfig()
	conf.Apply(&rc)

	assert.Equal(t, 4, rc.NumPlayers)
	assert.Equal(t, 60*time.Second, rc.TradingDuration)
	assert.Equal(t, 350, rc.StartingBalance)
	assert.Equal(t, 100, rc.PotTarget)
	assert.Equal(t, 10, rc.GoalBonus)
}
