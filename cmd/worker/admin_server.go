package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"crawlorch/internal/common/pagination"
	httpmw "crawlorch/internal/handler/http"
	"crawlorch/internal/handler/http/requestid"
	taskHandler "crawlorch/internal/handler/http/task"
	taskUC "crawlorch/internal/usecase/task"
)

// startAdminServer starts the Task Service Facade's admin HTTP surface,
// used for manual task creation/inspection and ad-hoc runs outside the
// cron-driven scheduler path (see SPEC_FULL.md §1 Non-goals: this is an
// internal operator surface, not a public-facing API).
//
// Environment variables:
//   - ADMIN_PORT: Port to listen on (default: 8081)
func startAdminServer(ctx context.Context, logger *slog.Logger, svc *taskUC.Service) *http.Server {
	port := getAdminPort()

	mux := http.NewServeMux()
	taskHandler.Register(mux, svc, pagination.LoadFromEnv())

	var handler http.Handler = mux
	handler = httpmw.Recover(logger)(handler)
	handler = httpmw.Logging(logger)(handler)
	handler = requestid.Middleware(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("admin server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("admin server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("admin server stopped")
		}
	}()

	return server
}

// getAdminPort retrieves the admin server port from environment variable.
// Defaults to 8081 if not set or invalid.
func getAdminPort() int {
	portStr := os.Getenv("ADMIN_PORT")
	if portStr == "" {
		return 8081
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 8081
	}

	return port
}
