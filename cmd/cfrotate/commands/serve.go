package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/cfrotate/internal/config"
	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/rotation"
)

// NewServeCommand runs an HTTP endpoint that accepts rotation events, for
// environments where the store calls a webhook instead of a function, and
// for driving rotations against LocalStack in integration tests. Also
// exposes Prometheus metrics and a health endpoint.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rotation events over HTTP",
		Long: `Start an HTTP server handling rotation events.

Endpoints:
  POST /rotate   accept a rotation event JSON document and execute the phase
  GET  /metrics  Prometheus metrics
  GET  /healthz  liveness check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rotation.InitMetrics()

			orch, err := buildOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/rotate", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
					return
				}

				var ev rotation.Event
				if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
					http.Error(w, "malformed event: "+err.Error(), http.StatusBadRequest)
					return
				}

				if err := orch.Handle(r.Context(), ev); err != nil {
					cfg.Logger.Error("%s failed for %s: %v", ev.Step, ev.SecretID, err)
					http.Error(w, err.Error(), statusForError(err))
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			})

			server := &http.Server{
				Addr:         listen,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 2 * time.Minute,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()
			cfg.Logger.Info("listening on %s", listen)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "Address to listen on")

	return cmd
}

// statusForError maps the rotation error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case cferrors.IsNotFound(err):
		return http.StatusNotFound
	case cferrors.IsConfiguration(err):
		return http.StatusBadRequest
	case cferrors.IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
