package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report archive over HTTP",
	Long: `Start a read-only HTTP API over the archive:

  GET /api/v1/dumps              metadata, newest first (?limit=N)
  GET /api/v1/dumps/latest       newest metadata
  GET /api/v1/dumps/{id}         metadata by id or id prefix
  GET /api/v1/dumps/{id}/report  report text`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&archiveDirFlag, "dir", "", "archive directory (default: archive.dir)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default: server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}

	cfg := web.DefaultConfig()
	cfg.ArchiveDir = dir
	cfg.Host = appConfig.Server.Host
	cfg.Port = appConfig.Server.Port
	cfg.CORSOrigins = appConfig.Server.CORSOrigins
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return web.New(cfg, logger.Logger).ListenAndServe(ctx)
}
