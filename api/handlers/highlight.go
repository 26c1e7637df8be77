package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/highlight"
	"github.com/meghashyamc/clinicsearch/services/index"
	"github.com/meghashyamc/clinicsearch/validation"
)

const streamHeartbeatInterval = 15 * time.Second

type SelectHighlightRequest struct {
	Session     string `json:"session" validate:"required,valid_session"`
	ID          string `json:"id" validate:"required,max=100"`
	Page        string `json:"page" validate:"required,valid_page"`
	CurrentPage string `json:"current_page" validate:"valid_page"`
}

type MountHighlightRequest struct {
	Session string `form:"session" validate:"required,valid_session"`
	Page    string `form:"page" validate:"required,valid_page"`
}

type HighlightStateResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

func SetupHighlight(router *gin.Engine, logger logger.Logger, correlator *highlight.Correlator, validator *validation.Validator) {
	router.POST("/highlight", handleSelectHighlight(correlator, logger, validator))
	router.GET("/highlight", handleGetHighlight(correlator, logger, validator))
	router.GET("/highlight/stream", handleHighlightStream(correlator, logger, validator))
}

func handleSelectHighlight(correlator *highlight.Correlator, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SelectHighlightRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from highlight request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate highlight request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		outcome := correlator.Select(c.Request.Context(), request.Session, highlight.Selection{
			ID:          request.ID,
			Page:        index.Page(request.Page),
			CurrentPage: index.Page(request.CurrentPage),
		})

		writeResponse(c, outcome, http.StatusOK, nil)
	}
}

func bindMountHighlight(c *gin.Context, logger logger.Logger, validator *validation.Validator) (*MountHighlightRequest, bool) {
	request := MountHighlightRequest{}
	if err := c.ShouldBindQuery(&request); err != nil {
		logger.Warn("could not extract expected params from highlight request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
		return nil, false
	}

	if err := validator.Validate(request); err != nil {
		logger.Warn("could not validate highlight request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return nil, false
	}

	return &request, true
}

// handleGetHighlight mounts the page just long enough to pick up a pending
// highlight.
func handleGetHighlight(correlator *highlight.Correlator, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request, ok := bindMountHighlight(c, logger, validator)
		if !ok {
			return
		}

		view := correlator.Mount(c.Request.Context(), request.Session, index.Page(request.Page))
		id, active := view.Current()
		view.Close()

		writeResponse(c, HighlightStateResponse{ID: id, Active: active}, http.StatusOK, nil)
	}
}

func handleHighlightStream(correlator *highlight.Correlator, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request, ok := bindMountHighlight(c, logger, validator)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		view := correlator.Mount(ctx, request.Session, index.Page(request.Page))
		defer view.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		heartbeat := time.NewTicker(streamHeartbeatInterval)
		defer heartbeat.Stop()

		logger.Debug("highlight stream opened", "session", request.Session, "page", request.Page)
		for {
			select {
			case <-ctx.Done():
				logger.Debug("highlight stream closed", "session", request.Session, "page", request.Page, "reason", ctx.Err())
				return
			case <-heartbeat.C:
				fmt.Fprint(c.Writer, ": ping\n\n")
				c.Writer.Flush()
			case change, ok := <-view.Changes():
				if !ok {
					return
				}
				c.SSEvent(string(change.Event), change)
				c.Writer.Flush()
			}
		}
	}
}
