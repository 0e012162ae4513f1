package main

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/os2mo/loracache/compare"
)

type server struct {
	comparator *compare.Comparator
	running    atomic.Bool
	// base is the context background runs derive from; it carries the logger.
	base context.Context
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/trigger/compare", s.triggerCompare).Methods(http.MethodPost)
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, map[string]any{"status": "ok", "comparing": s.running.Load()})
}

// triggerCompare starts a background comparison. Only one runs at a time.
func (s *server) triggerCompare(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.running.CompareAndSwap(false, true) {
		w.WriteHeader(http.StatusConflict)
		_ = writeJSON(w, map[string]string{"status": "already running"})
		return
	}

	go func() {
		defer s.running.Store(false)

		logger := zerolog.Ctx(s.base)
		reports, err := s.comparator.Run(s.base)
		if err != nil {
			logger.Error().Err(err).Msg("triggered comparison failed")
		}
		for _, r := range reports {
			logger.Info().Str("configuration", r.Configuration).Bool("equivalent", r.Equivalent).Msg("triggered comparison done")
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = writeJSON(w, map[string]string{"status": "scheduled"})
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr       string
		ignoreFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP endpoint that triggers comparisons",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)

			comparator, err := a.newComparator(ctx, ignoreFile)
			if err != nil {
				return withCode(exitUsage, err)
			}

			s := &server{comparator: comparator, base: ctx}
			srv := &http.Server{
				Addr:              addr,
				Handler:           s.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", addr).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&ignoreFile, "ignore-file", "", "YAML file extending the ignored fields per kind")
	return cmd
}
