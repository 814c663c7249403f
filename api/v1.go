// Package api provides the handlers behind the versioned API namespace. The
// router owns version registration; handlers only see requests whose leading
// segment matched a supported version.
package api

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qubane/webserv/config"
	"github.com/qubane/webserv/http"
)

// V1 returns the route handler for the v1 namespace.
func V1(cfg *config.Config, started time.Time, logger *slog.Logger) http.HandlerFunc {
	return func(conn net.Conn, req *http.Request) *http.Response {
		path, query, _ := strings.Cut(req.Path, "?")

		switch path {
		case "/v1/status":
			return statusResponse(started)
		case "/v1/random":
			return randomResponse(cfg, query, logger)
		default:
			// unknown paths fall back to the router's templated not-found
			return nil
		}
	}
}

func statusResponse(started time.Time) *http.Response {
	payload := struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{
		Status: "running",
		Uptime: time.Since(started).Round(time.Second).String(),
	}

	res := &http.Response{Status: http.StatusOK, Compressible: true}
	return res.WithJson(payload)
}

func randomResponse(cfg *config.Config, query string, logger *slog.Logger) *http.Response {
	size := cfg.RandomMinSize

	if values, err := url.ParseQuery(query); err == nil {
		if raw := values.Get("size"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < cfg.RandomMinSize || parsed > cfg.RandomMaxSize {
				res := &http.Response{Status: http.StatusBadRequest}
				return res.WithText(fmt.Sprintf("size must be within [%d, %d]", cfg.RandomMinSize, cfg.RandomMaxSize))
			}
			size = parsed
		}
	}

	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		logger.Error("random payload generation failed", "error", err)
		return &http.Response{Status: http.StatusInternalServerError}
	}

	res := &http.Response{Status: http.StatusOK, Body: payload}
	res.SetHeader("content-type", "application/octet-stream")
	return res
}
