package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakala/divrecon/internal/api"
	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
	"github.com/wakala/divrecon/internal/remediation"
)

func (c *cli) newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record store, run ledger and remediation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Port = port
			}
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config, 8080)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := logging.Component("server")

	a.seed(ctx)

	ret, err := a.retriever()
	if err != nil {
		log.Warn().Err(err).Str("path", a.cfg.KnowledgeBaseFile).Msg("Knowledge base unavailable, suggestions disabled")
		ret = remediation.NewRetriever(nil)
	}

	router := api.NewRouter(api.Deps{
		Service:       a.service,
		Records:       a.records,
		Severity:      a.severity,
		Remediations:  a.remediations,
		Retriever:     ret,
		Updater:       a.updater(),
		Runs:          a.runs,
		Discrepancies: a.discs,
		SeverityRepo:  a.sevRepo,
		OwnerFile:     a.cfg.OwnerFile,
		CustodianFile: a.cfg.CustodianFile,
		Limiter:       api.NewLimiter(a.cfg.RateLimit),
	})

	addr := net.JoinHostPort("", strconv.Itoa(a.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", "http://localhost"+addr).Str("api", "/api/v1").Msg("divrecon listening")
	for _, ep := range []string{
		"GET    /api/v1/pairs",
		"GET    /api/v1/pairs/{id}",
		"GET    /api/v1/matrix",
		"POST   /api/v1/matrix/cells",
		"POST   /api/v1/runs",
		"GET    /api/v1/runs",
		"GET    /api/v1/runs/{id}",
		"GET    /api/v1/runs/{id}/discrepancies",
		"GET    /api/v1/severity",
		"POST   /api/v1/severity",
		"GET    /api/v1/remediations",
		"POST   /api/v1/remediations",
		"GET    /api/v1/remediations/suggest",
	} {
		log.Debug().Msg(ep)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seed pairs the configured inputs when no record store exists yet.
func (a *app) seed(ctx context.Context) {
	log := logging.Component("server")

	if _, err := a.records.Nested(); !errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("path", a.records.NestedPath).Msg("Record store present, skipping initial pairing")
		return
	}
	for _, p := range []string{a.cfg.OwnerFile, a.cfg.CustodianFile} {
		if _, err := os.Stat(p); err != nil {
			log.Info().Str("path", p).Msg("Input missing, skipping initial pairing")
			return
		}
	}

	res, err := a.service.Run(ctx, a.cfg.OwnerFile, a.cfg.CustodianFile)
	if err != nil {
		log.Warn().Err(err).Msg("Initial pairing failed")
		return
	}
	log.Info().Str("run", res.Run.ID).Int("pairs", res.Run.Pairs).Msg("Initial pairing complete")
}
