package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/identity"
)

type RoomAPI interface {
	CreateRoom(ctx context.Context, hostNickname string) (*models.Room, error)
	JoinRoom(ctx context.Context, code, nickname string) (*models.Room, error)
}

type DailyAPI interface {
	Today() string
	GetDailySeed(ctx context.Context) (game.DailyChallenge, error)
	Status(ctx context.Context, userID, date string) (models.DailyStatus, error)
	SubmitDailyScore(ctx context.Context, userID, date string, attempts int) (models.ScoreResult, error)
	Stats(ctx context.Context, date string) (models.DailyStats, error)
}

type ScoreAPI interface {
	SubmitScore(ctx context.Context, drinkCount int, userID string) (*models.Score, error)
}

type TelemetryAPI interface {
	RecordDrawnCards(ctx context.Context, cards []game.Card) error
	Stats(ctx context.Context) ([]models.CardStat, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	port      string

	rooms     RoomAPI
	daily     DailyAPI
	scores    ScoreAPI
	telemetry TelemetryAPI
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, port string, rooms RoomAPI, daily DailyAPI, scores ScoreAPI, telemetry TelemetryAPI) *Handler {
	return &Handler{
		tokenAuth: tokenAuth,
		port:      port,
		rooms:     rooms,
		daily:     daily,
		scores:    scores,
		telemetry: telemetry,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, data interface{}) {
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: data})
}

// fail maps service errors to status codes. Anything unexpected is logged
// and hidden behind a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNicknameTooShort),
		errors.Is(err, service.ErrNicknameTooLong),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrNotToday),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrInvalidCards):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrIdentityRequired):
		code = http.StatusUnauthorized
	case errors.Is(err, service.ErrRoomNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrNicknameTaken),
		errors.Is(err, service.ErrRoomStarted):
		code = http.StatusConflict
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Errorf("%s %s: %s", r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	h.CreateResponse(w, Response{Message: "request failed", Code: code, Error: msg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.CreateResponse(w, Response{Message: "request failed", Code: http.StatusBadRequest, Error: "malformed request body"})
		return false
	}
	return true
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, map[string]string{"service": "game", "port": h.port})
}

func (h *Handler) DailySeed(w http.ResponseWriter, r *http.Request) {
	ch, err := h.daily.GetDailySeed(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, ch)
}

func (h *Handler) DailyStatus(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.daily.Today()
	}
	st, err := h.daily.Status(r.Context(), identity.UserID(r.Context()), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, st)
}

func (h *Handler) SubmitDailyScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameDate string `json:"game_date"`
		Attempts int    `json:"attempts"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.GameDate == "" {
		req.GameDate = h.daily.Today()
	}
	res, err := h.daily.SubmitDailyScore(r.Context(), identity.UserID(r.Context()), req.GameDate, req.Attempts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, res)
}

func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.daily.Stats(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, stats)
}

func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrinkCount int `json:"drink_count"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	score, err := h.scores.SubmitScore(r.Context(), req.DrinkCount, identity.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "score saved", Code: http.StatusCreated, Data: score})
}

func (h *Handler) RecordCards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cards []game.Card `json:"cards"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.telemetry.RecordDrawnCards(r.Context(), req.Cards); err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "cards recorded", Code: http.StatusAccepted})
}

func (h *Handler) CardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.telemetry.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, stats)
}

type roomResponse struct {
	RoomID   string `json:"room_id"`
	RoomCode string `json:"room_code"`
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), req.Nickname)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "room created",
		Code:    http.StatusCreated,
		Data:    roomResponse{RoomID: room.ID, RoomCode: room.RoomCode},
	})
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomCode string `json:"room_code"`
		Nickname string `json:"nickname"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	room, err := h.rooms.JoinRoom(r.Context(), req.RoomCode, req.Nickname)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roomResponse{RoomID: room.ID, RoomCode: room.RoomCode})
}
