package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
)

type queryPipeline interface {
	HandleQuery(ctx context.Context, userID, query string) (rag.Result, error)
}

// ChatHandler answers free-form questions about the user's training history.
type ChatHandler struct {
	Pipeline queryPipeline
	logger   *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	if h.logger == nil {
		h.logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	g.POST("", h.chat)
}

// Chat
//
//	@Summary	Ask a question about your workouts
//	@Tags		chat
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ChatRequest	true	"Question"
//	@Success	200		{object}	ChatResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	500		{object}	HTTPError
//	@Router		/api/v1/chat [post]
func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
	}
	started := time.Now()
	res, err := h.Pipeline.HandleQuery(c.Request().Context(), userID(c), req.Query)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
		}
		kind, _ := rag.KindOf(err)
		h.logger.Printf("query failed kind=%s: %v", kind, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "something went wrong").SetInternal(err)
	}
	if res.Range != nil {
		h.logger.Printf("branch=%s range=%s records=%d in %s", res.Branch, res.Range, len(res.Records), time.Since(started))
	} else {
		h.logger.Printf("branch=%s records=%d in %s", res.Branch, len(res.Records), time.Since(started))
	}
	return c.JSON(http.StatusOK, ChatResponse{Answer: res.Answer})
}
