package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figgie.com/server/game"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler *gin.Engine
	clock   *game.FakeClock
}

func newTestServer(t *testing.T, statePollRate int) *testServer {
	t.Helper()
	clock := game.NewFakeClock(time.Unix(30000, 0))
	engine := game.NewEngine(game.DefaultRoundConfig(), clock, nil)
	t.Cleanup(engine.Close)
	return &testServer{
		handler: NewRouter(engine, statePollRate).Handler(),
		clock:   clock,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	fields := map[string]json.RawMessage{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	}
	return w, fields
}

func errorOf(t *testing.T, fields map[string]json.RawMessage) string {
	t.Helper()
	var msg string
	require.NoError(t, json.Unmarshal(fields["error"], &msg))
	return msg
}

func stringOf(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(fields[key], &s))
	return s
}

func (ts *testServer) join(t *testing.T, name string) string {
	t.Helper()
	w, fields := ts.do(t, http.MethodPost, "/join", gin.H{"name": name})
	require.Equal(t, http.StatusOK, w.Code)
	return stringOf(t, fields, "player_id")
}

func (ts *testServer) fillLobby(t *testing.T) []string {
	t.Helper()
	pids := make([]string, 0, 4)
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		pids = append(pids, ts.join(t, name))
	}
	return pids
}

func TestJoinRejectsEmptyName(t *testing.T) {
	ts := newTestServer(t, 0)
	w, fields := ts.do(t, http.MethodPost, "/join", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Name is required", errorOf(t, fields))
}

func TestJoinFullFlow(t *testing.T) {
	ts := newTestServer(t, 0)
	pids := ts.fillLobby(t)

	w, fields := ts.do(t, http.MethodPost, "/join", gin.H{"name": "eve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot join right now", errorOf(t, fields))

	w, fields = ts.do(t, http.MethodGet, "/state?player_id="+pids[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trading", stringOf(t, fields, "state"))
	var timeLeft int
	require.NoError(t, json.Unmarshal(fields["time_left"], &timeLeft))
	assert.Equal(t, 240, timeLeft)
}

func TestStateRequiresPlayerID(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.fillLobby(t)

	w, fields := ts.do(t, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing player_id", errorOf(t, fields))

	w, fields = ts.do(t, http.MethodGet, "/state?player_id=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing player_id", errorOf(t, fields))
}

func TestActionOrderRestsAndTrades(t *testing.T) {
	ts := newTestServer(t, 0)
	pids := ts.fillLobby(t)

	w, fields := ts.do(t, http.MethodPost, "/action", gin.H{
		"player_id":   pids[0],
		"action_type": "order",
		"order_type":  "buy",
		"suit":        "clubs",
		"price":       5,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, stringOf(t, fields, "order_id"))

	// A second player hits the bid; the one who holds a club sells.
	var traded bool
	for _, pid := range pids[1:] {
		w, fields = ts.do(t, http.MethodPost, "/action", gin.H{
			"player_id":   pid,
			"action_type": "order",
			"order_type":  "sell",
			"suit":        "clubs",
			"price":       5,
		})
		if w.Code == http.StatusOK {
			var tr game.Trade
			require.NoError(t, json.Unmarshal(fields["trade"], &tr))
			assert.Equal(t, pids[0], tr.Buyer)
			assert.Equal(t, pid, tr.Seller)
			assert.Equal(t, 5, tr.Price)
			traded = true
			break
		}
		assert.Equal(t, "Not enough cards", errorOf(t, fields))
	}
	assert.True(t, traded)
}

func TestActionCancel(t *testing.T) {
	ts := newTestServer(t, 0)
	pids := ts.fillLobby(t)

	_, fields := ts.do(t, http.MethodPost, "/action", gin.H{
		"player_id":   pids[0],
		"action_type": "order",
		"order_type":  "buy",
		"suit":        "spades",
		"price":       4,
	})
	orderID := stringOf(t, fields, "order_id")

	w, fields := ts.do(t, http.MethodPost, "/action", gin.H{
		"player_id":   pids[0],
		"action_type": "cancel",
		"order_type":  "both",
		"suit":        "all",
		"price":       -1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var canceled []string
	require.NoError(t, json.Unmarshal(fields["canceled"], &canceled))
	assert.Equal(t, []string{orderID}, canceled)
}

func TestActionSchemaErrors(t *testing.T) {
	ts := newTestServer(t, 0)
	pids := ts.fillLobby(t)

	cases := []struct {
		name string
		body gin.H
		want string
	}{
		{
			name: "unknown player",
			body: gin.H{"player_id": "bogus", "action_type": "order", "order_type": "buy", "suit": "clubs", "price": 5},
			want: "Invalid player_id",
		},
		{
			name: "bad action type",
			body: gin.H{"player_id": pids[0], "action_type": "tickle", "price": 5},
			want: "Invalid action type",
		},
		{
			name: "missing price",
			body: gin.H{"player_id": pids[0], "action_type": "order", "order_type": "buy", "suit": "clubs"},
			want: "Price must be a positive integer",
		},
		{
			name: "fractional price",
			body: gin.H{"player_id": pids[0], "action_type": "order", "order_type": "buy", "suit": "clubs", "price": 2.5},
			want: "Price must be a positive integer",
		},
		{
			name: "zero price",
			body: gin.H{"player_id": pids[0], "action_type": "order", "order_type": "buy", "suit": "clubs", "price": 0},
			want: "Price must be a positive integer",
		},
		{
			name: "bad order type",
			body: gin.H{"player_id": pids[0], "action_type": "order", "order_type": "hold", "suit": "clubs", "price": 5},
			want: "Invalid order_type",
		},
		{
			name: "bad suit",
			body: gin.H{"player_id": pids[0], "action_type": "order", "order_type": "buy", "suit": "stars", "price": 5},
			want: "Invalid suit",
		},
		{
			name: "bad cancel threshold",
			body: gin.H{"player_id": pids[0], "action_type": "cancel", "order_type": "both", "suit": "all", "price": -2},
			want: "Price must be a non-negative integer or -1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, fields := ts.do(t, http.MethodPost, "/action", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.want, errorOf(t, fields))
		})
	}
}

func TestActionOutsideTrading(t *testing.T) {
	ts := newTestServer(t, 0)
	pid := ts.join(t, "alice")

	w, fields := ts.do(t, http.MethodPost, "/action", gin.H{
		"player_id":   pid,
		"action_type": "order",
		"order_type":  "buy",
		"suit":        "clubs",
		"price":       5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Trading not active", errorOf(t, fields))
}

func TestCompletedStateIncludesResults(t *testing.T) {
	ts := newTestServer(t, 0)
	pids := ts.fillLobby(t)

	ts.clock.Advance(241 * time.Second)
	w, fields := ts.do(t, http.MethodGet, "/state?player_id="+pids[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", stringOf(t, fields, "state"))
	assert.Equal(t, "null", string(fields["time_left"]))
	require.Contains(t, fields, "results")
	require.Contains(t, fields, "hands")
	require.Contains(t, fields, "initial_balances")

	var results game.Results
	require.NoError(t, json.Unmarshal(fields["results"], &results))
	assert.True(t, results.GoalSuit.Valid())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 0)
	w, fields := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", stringOf(t, fields, "status"))
	assert.Equal(t, "waiting", stringOf(t, fields, "phase"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rounds_started_total")
}

func TestStateRateLimit(t *testing.T) {
	ts := newTestServer(t, 2)
	pid := ts.join(t, "alice")

	url := fmt.Sprintf("/state?player_id=%s", pid)
	limited := false
	for i := 0; i < 10; i++ {
		w, _ := ts.do(t, http.MethodGet, url, nil)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.True(t, limited)
}
