package target

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App is a small HTTP service with endpoints of known cost, used as a
// local benchmark target.
type App struct {
	router *chi.Mux
	logger *zap.Logger
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, http.StatusOK, map[string]any{
			"message": "envbench target",
			"status":  "running",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, http.StatusOK, map[string]any{"status": "healthy"})
	})

	r.Get("/fast", handleFast)
	r.Get("/slow", handleSlow)
	r.Get("/async-light", handleAsyncLight)
	r.Get("/heavy", handleHeavy)
	r.Get("/json-large", handleJSONLarge)
	r.Get("/error", handleRandomError)
	r.Get("/delay/{ms}", handleDelay)
	r.Get("/status/{code}", handleStatus)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not found")
	})

	return &App{router: r, logger: logger}
}

func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("target listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("target server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // shutdown must outlive the cancelled ctx
		return fmt.Errorf("failed to shut down target: %w", err)
	}
	return nil
}
