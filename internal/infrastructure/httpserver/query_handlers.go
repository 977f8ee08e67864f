package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

// askQuery serves a query in full-response mode.
func (s *Server) askQuery(c echo.Context) error {
	var req query.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	ans, err := s.queryService.Ask(c.Request().Context(), &req)
	if err != nil {
		queriesTotal.WithLabelValues("full", "error").Inc()
		return s.domainError(c, err)
	}

	if ans.Cached {
		queriesTotal.WithLabelValues("full", "cached").Inc()
	} else {
		queriesTotal.WithLabelValues("full", "ok").Inc()
	}
	return c.JSON(http.StatusOK, ans)
}

// streamQuery serves a query as a Server-Sent Events stream: token
// events as the model produces them, one sources event, then a done
// event carrying the assembled answer. A cached answer replays as a
// single token event followed by the same terminal frames.
func (s *Server) streamQuery(c echo.Context) error {
	var req query.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	ctx := c.Request().Context()
	chunks, err := s.queryService.AskStream(ctx, &req)
	if err != nil {
		// Failed before the first byte: still a plain JSON error.
		queriesTotal.WithLabelValues("stream", "error").Inc()
		return s.domainError(c, err)
	}

	w, err := newSSEWriter(c.Response())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().WriteHeader(http.StatusOK)

	for chunk := range chunks {
		switch chunk.Type {
		case query.ChunkToken:
			if err := w.WriteEvent("token", map[string]string{"content": chunk.Content}); err != nil {
				// Client gone; the service drains the backend.
				return nil
			}
		case query.ChunkSources:
			_ = w.WriteEvent("sources", map[string]any{
				"sources": chunk.Sources,
				"images":  chunk.Images,
			})
		case query.ChunkDone:
			queriesTotal.WithLabelValues("stream", streamOutcome(chunk.Answer)).Inc()
			_ = w.WriteEvent("done", chunk.Answer)
		case query.ChunkError:
			queriesTotal.WithLabelValues("stream", "error").Inc()
			_, body := classifyError(chunk.Err)
			_ = w.WriteEvent("error", body)
		}
	}
	return nil
}

func streamOutcome(ans *query.Answer) string {
	if ans != nil && ans.Cached {
		return "cached"
	}
	return "ok"
}

// suggest returns ranked completions for a partial query.
func (s *Server) suggest(c echo.Context) error {
	prefix := strings.TrimSpace(c.QueryParam("q"))
	if prefix == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	suggestions, err := s.queryService.Suggest(c.Request().Context(), prefix, limit)
	if err != nil {
		return s.domainError(c, err)
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": suggestions})
}

// serveImage proxies an image asset referenced by a retrieved passage.
func (s *Server) serveImage(c echo.Context) error {
	file := c.Param("file")
	// Asset names are flat; anything path-like is hostile.
	if file == "" || strings.ContainsAny(file, "/\\") || strings.Contains(file, "..") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image name")
	}

	body, contentType, err := s.imageFetcher.FetchImage(c.Request().Context(), file)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, contentType, body)
}
