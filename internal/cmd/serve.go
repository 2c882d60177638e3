package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
	"github.com/wethinkt/go-cdrintel/internal/server"
)

// Serve command flags
var (
	servePort  int
	serveHost  string
	serveToken string
	serveQuiet bool
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the cdrintel HTTP API.

The server provides:
  - POST /v1/ingest for multipart CDR uploads
  - GET  /v1/analytics/{view} for every analyzer
  - GET  /v1/export for JSON, CSV, KML and XLSX exports
  - geofence management and a live alert WebSocket
  - GET  /metrics for Prometheus

With --watch the configured drop directory is ingested in the background.

Examples:
  cdrintel serve                          # localhost:8790
  cdrintel serve --port 9000 --token s3cret
  cdrintel serve --watch --quiet`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "server host (default from config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "bearer token for API authentication (default: CDRINTEL_TOKEN or config)")
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "suppress HTTP request logging")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "also ingest files from the drop directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	scfg := server.Config{
		Host:  cfg.Server.Host,
		Port:  cfg.Server.Port,
		Token: cfg.Server.Token,
		Quiet: cfg.Server.Quiet || serveQuiet,
	}
	if cmd.Flags().Changed("port") {
		scfg.Port = servePort
	}
	if serveHost != "" {
		scfg.Host = serveHost
	}
	if serveToken != "" {
		scfg.Token = serveToken
	}
	if !scfg.Quiet {
		applog.Log.SetMirror(os.Stderr)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Geofence.File != "" {
		n, err := a.importGeofenceFile(ctx, cfg.Geofence.File)
		if err != nil {
			return fmt.Errorf("import geofences: %w", err)
		}
		applog.Log.Info("Imported geofences", "file", cfg.Geofence.File, "count", n)
	}

	srv := server.NewServer(scfg, server.Services{
		Store:     a.store,
		Pipeline:  a.pipeline,
		Engine:    a.engine,
		Exporter:  a.exporter,
		Alerts:    a.alerts,
		Evaluator: a.evaluator,
		Devices:   a.devices,
	})

	if !scfg.Quiet {
		if scfg.Token != "" {
			fmt.Fprintln(os.Stderr, i18n.T("cmd.serve.authEnabled", "Authentication: enabled (bearer token)"))
		} else {
			fmt.Fprintln(os.Stderr, i18n.T("cmd.serve.authDisabled", "Authentication: disabled (use --token to secure)"))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx) })

	if serveWatch || cfg.Ingest.Watch {
		dir, err := cfg.DropDir()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watchDropDir(ctx, a.pipeline, dir, cfg.Ingest.DebounceDuration(), func(ev ingest.DropEvent, res *ingest.Result, err error) {
				if err == nil {
					applog.Log.Info("Ingested dropped file", "path", ev.Path, "session_id", res.SessionID, "records", res.RecordsInserted)
				}
			})
		})
	}

	return g.Wait()
}
