package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/middleware"
	"github.com/suPer8Hu/recipe-snap/internal/job"
)

var errTooLarge = errors.New("image too large")

// uploadedImage reads the "image" (or "file") multipart field.
func (h *Handler) uploadedImage(c *gin.Context) (ai.Image, error) {
	limit := h.Cfg.UploadMaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	var (
		fh  *multipart.FileHeader
		err error
	)
	for _, field := range []string{"image", "file"} {
		if fh, err = c.FormFile(field); err == nil {
			break
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return ai.Image{}, errTooLarge
		}
	}
	if fh == nil {
		return ai.Image{}, job.ErrNoImage
	}
	if fh.Size > limit {
		return ai.Image{}, errTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return ai.Image{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return ai.Image{}, err
	}
	if int64(len(data)) > limit {
		return ai.Image{}, errTooLarge
	}
	if len(data) == 0 {
		return ai.Image{}, job.ErrNoImage
	}
	return ai.Image{Data: data, MIMEType: fh.Header.Get("Content-Type")}, nil
}

func (h *Handler) CreateJob(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	img, err := h.uploadedImage(c)
	switch {
	case errors.Is(err, errTooLarge):
		common.Fail(c, http.StatusRequestEntityTooLarge, 10041, "image exceeds upload limit")
		return
	case errors.Is(err, job.ErrNoImage):
		common.Fail(c, http.StatusBadRequest, 10040, "image file is required")
		return
	case err != nil:
		common.Fail(c, http.StatusBadRequest, 10001, "invalid multipart body")
		return
	}

	j, err := h.Engine.Submit(c.Request.Context(), uid, img)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrNoImage):
			common.Fail(c, http.StatusBadRequest, 10040, "image file is required")
		case errors.Is(err, job.ErrDispatch):
			h.logger(c).Error().Err(err).Msg("job dispatch failed")
			common.Fail(c, http.StatusServiceUnavailable, 20020, "job could not be scheduled, try again later")
		default:
			h.ledgerFail(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         j.ID,
		"status":     j.Status,
		"createdAt":  j.CreatedAt,
		"userPoints": j.PointsBalanceBeforeJob,
		"message":    "recipe analysis started",
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.Engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "job not found")
			return
		}
		h.logger(c).Error().Err(err).Msg("get job")
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListJobs returns the caller's most recent jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.Engine.ListByUser(c.Request.Context(), uid, limit)
	if err != nil {
		h.logger(c).Error().Err(err).Msg("list jobs")
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
