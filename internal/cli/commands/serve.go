package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/web/api"
	"github.com/conduit-lang/docref/internal/web/server"
)

var servePort int

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documents over HTTP",
		Long: `Start an HTTP server exposing the configured entity types.

Routes:
  GET    /entities                 registered entity types and relations
  GET    /{collection}             documents (?id=a&id=b, ?limit=n)
  GET    /{collection}/{id}        one document
  POST   /{collection}             create
  PUT    /{collection}/{id}        merge changes
  DELETE /{collection}/{id}        delete

Reads accept ?populate=true and ?include=key1,key2.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != 0 {
		a.cfg.Server.Port = servePort
	}

	router := api.NewRouter(a.manager, a.logger.Named("http"), a.cfg.Server.APIPrefix)
	srv, err := server.New(server.DefaultConfig(a.cfg.Server.Address(), router), a.logger)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Serving %d entity types on http://%s%s\n",
		a.registry.Count(), srv.Addr(), a.cfg.Server.APIPrefix)
	a.logger.Info("serving",
		zap.String("addr", srv.Addr()),
		zap.String("driver", a.cfg.Store.Driver),
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
