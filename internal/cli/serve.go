package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/wire"
)

// ServeCmd returns the serve command running the intent server.
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the intent API over HTTP",
		Long: `Serve POST /api/intent, GET /healthz and GET /metrics until interrupted.

The listen address defaults to http.addr from .scenegov/config.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = wire.Config().HTTP.Addr
			}
			server := wire.HTTPServer()
			wire.Logger().Info("starting scenegov", zap.String("addr", addr), zap.Strings("intents", server.Intents()))

			if err := server.ListenAndServe(ctx, addr); err != nil {
				return fmt.Errorf("intent server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
