package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/logging"
	"github.com/suPer8Hu/recipe-snap/internal/points"
	"github.com/suPer8Hu/recipe-snap/internal/users"
)

type Handler struct {
	Cfg      config.Config
	Users    *users.Service
	Ledger   *points.Ledger
	Engine   *job.Engine
	Feedback *job.FeedbackRepo
	Log      *zerolog.Logger
}

func NewHandler(cfg config.Config, us *users.Service, ledger *points.Ledger, engine *job.Engine, fb *job.FeedbackRepo, log *zerolog.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{Cfg: cfg, Users: us, Ledger: ledger, Engine: engine, Feedback: fb, Log: log}
}

func (h *Handler) logger(c *gin.Context) *zerolog.Logger {
	return logging.From(c.Request.Context(), h.Log)
}

// ledgerFail maps points errors onto the API's error bodies.
func (h *Handler) ledgerFail(c *gin.Context, err error) {
	var ie *points.InsufficientError
	switch {
	case errors.As(err, &ie):
		common.FailWith(c, http.StatusBadRequest, 10030, "insufficient points", gin.H{
			"currentPoints":  ie.Current,
			"requiredPoints": ie.Required,
		})
	case errors.Is(err, points.ErrInvalidAmount):
		common.Fail(c, http.StatusBadRequest, 10031, "points must be a positive integer")
	case errors.Is(err, points.ErrAccountNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "points account not found")
	case errors.Is(err, points.ErrLedgerUnavailable):
		h.logger(c).Error().Err(err).Msg("ledger unavailable")
		common.Fail(c, http.StatusServiceUnavailable, 20010, "points service unavailable")
	default:
		h.logger(c).Error().Err(err).Msg("ledger error")
		common.Fail(c, http.StatusInternalServerError, 20011, "points service error")
	}
}
