package rest

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"figgie.com/server/game"
	"figgie.com/server/logging"
)

var restLogger = log.With().Str("logger_name", "rest::rest").Logger()

type appError struct {
	Error string `json:"error"`
}

// Router wires the HTTP surface onto a game engine. The ops endpoints
// (/metrics, /healthz) ride alongside the game protocol.
type Router struct {
	engine  *game.Engine
	limiter *stateLimiter
}

func NewRouter(engine *game.Engine, statePollRate int) *Router {
	return &Router{
		engine:  engine,
		limiter: newStateLimiter(statePollRate),
	}
}

func (r *Router) Handler() *gin.Engine {
	g := gin.Default()
	g.POST("/join", r.join)
	g.GET("/state", r.state)
	g.POST("/action", r.action)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.GET("/healthz", r.healthz)
	return g
}

func RunRestServer(engine *game.Engine, port int, statePollRate int) {
	r := NewRouter(engine, statePollRate)
	restLogger.Info().Int("port", port).Msg("Starting REST server")
	if err := r.Handler().Run(fmt.Sprintf(":%d", port)); err != nil {
		msg := fmt.Sprintf("REST server terminated: %v", err)
		restLogger.Error().Msg(msg)
		panic(msg)
	}
}

func (r *Router) join(c *gin.Context) {
	type payload struct {
		Name string `json:"name"`
	}
	var body payload
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, appError{Error: game.ErrNameRequired.Error()})
		return
	}
	pid, err := r.engine.Join(body.Name)
	if err != nil {
		rejectWith(c, err)
		return
	}
	restLogger.Info().
		Str(logging.PlayerIDKey, pid).
		Str(logging.PlayerNameKey, body.Name).
		Msg("Player joined")
	c.JSON(http.StatusOK, gin.H{"player_id": pid})
}

func (r *Router) state(c *gin.Context) {
	pid := c.Query("player_id")
	if pid == "" {
		c.JSON(http.StatusBadRequest, appError{Error: "Invalid or missing player_id"})
		return
	}
	if !r.limiter.allow(pid) {
		c.JSON(http.StatusTooManyRequests, appError{Error: "Too many state requests"})
		return
	}
	snap, err := r.engine.StateFor(pid)
	if err != nil {
		if err == game.ErrUnknownPlayer {
			c.JSON(http.StatusBadRequest, appError{Error: "Invalid or missing player_id"})
			return
		}
		rejectWith(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// actionPayload binds loosely so that price validation can distinguish
// a missing price from a fractional or negative one.
type actionPayload struct {
	PlayerID   string   `json:"player_id"`
	ActionType string   `json:"action_type"`
	OrderType  string   `json:"order_type"`
	Suit       string   `json:"suit"`
	Price      *float64 `json:"price"`
}

func (r *Router) action(c *gin.Context) {
	var body actionPayload
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, appError{Error: game.ErrInvalidActionType.Error()})
		return
	}
	req, err := decodeAction(body)
	if err != nil {
		rejectWith(c, err)
		return
	}
	result, err := r.engine.SubmitAction(body.PlayerID, req)
	if err != nil {
		rejectWith(c, err)
		return
	}
	switch req.ActionType {
	case game.ActionOrder:
		if result.Trade != nil {
			c.JSON(http.StatusOK, gin.H{"trade": result.Trade})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": result.OrderID})
	case game.ActionCancel:
		c.JSON(http.StatusOK, gin.H{"canceled": result.Canceled})
	}
}

// decodeAction checks the wire-level shape of the price field; the
// engine re-validates the business rules.
func decodeAction(body actionPayload) (game.ActionRequest, error) {
	req := game.ActionRequest{
		ActionType: game.ActionType(body.ActionType),
		OrderType:  body.OrderType,
		Suit:       body.Suit,
	}
	switch req.ActionType {
	case game.ActionOrder:
		if body.Price == nil || !isWhole(*body.Price) {
			return req, game.ErrInvalidPrice
		}
	case game.ActionCancel:
		if body.Price == nil || !isWhole(*body.Price) {
			return req, game.ErrInvalidCancelPrice
		}
	default:
		return req, game.ErrInvalidActionType
	}
	req.Price = int(*body.Price)
	return req, nil
}

func isWhole(f float64) bool {
	return f == math.Trunc(f)
}

func rejectWith(c *gin.Context, err error) {
	if err == game.ErrRoundFaulted {
		c.JSON(http.StatusInternalServerError, appError{Error: err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, appError{Error: err.Error()})
}

func (r *Router) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"phase":  r.engine.Phase(),
	})
}
