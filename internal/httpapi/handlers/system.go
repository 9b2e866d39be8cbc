package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/middleware"
	"github.com/suPer8Hu/recipe-snap/internal/job"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type feedbackReq struct {
	JobID   string `json:"jobId"`
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitFeedback stores a rating for a finished analysis. Anonymous
// feedback is accepted.
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.JobID) == "" || req.Rating == nil {
		common.Fail(c, http.StatusBadRequest, 10002, "jobId and rating are required")
		return
	}

	uid, _ := middleware.UserID(c)
	fb := &job.Feedback{JobID: req.JobID, UserID: uid, Rating: *req.Rating, Comment: req.Comment}
	if err := h.Feedback.Save(c.Request.Context(), fb); err != nil {
		if errors.Is(err, job.ErrInvalidRating) {
			common.Fail(c, http.StatusBadRequest, 10050, err.Error())
			return
		}
		h.logger(c).Error().Err(err).Msg("save feedback")
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	c.Status(http.StatusNoContent)
}
