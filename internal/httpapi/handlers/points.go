package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/middleware"
)

type checkPointsReq struct {
	RequiredPoints *int64 `json:"requiredPoints"`
}

type pointsReq struct {
	Points int64 `json:"points"`
}

func (h *Handler) CheckPoints(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	var req checkPointsReq
	if err := c.ShouldBindJSON(&req); err != nil || req.RequiredPoints == nil {
		common.Fail(c, http.StatusBadRequest, 10002, "requiredPoints is required")
		return
	}

	ok, bal, err := h.Ledger.HasEnough(c.Request.Context(), uid, *req.RequiredPoints)
	if err != nil {
		h.ledgerFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hasEnough":      ok,
		"currentPoints":  bal,
		"requiredPoints": *req.RequiredPoints,
	})
}

func (h *Handler) ConsumePoints(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	var req pointsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10031, "points must be a positive integer")
		return
	}

	bal, err := h.Ledger.Consume(c.Request.Context(), uid, req.Points)
	if err != nil {
		h.ledgerFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"newPoints":      bal,
		"consumedPoints": req.Points,
	})
}

func (h *Handler) RewardPoints(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	var req pointsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10031, "points must be a positive integer")
		return
	}

	bal, err := h.Ledger.Reward(c.Request.Context(), uid, req.Points)
	if err != nil {
		h.ledgerFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"newPoints":      bal,
		"rewardedPoints": req.Points,
	})
}
