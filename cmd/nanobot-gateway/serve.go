package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/elliot35/nanobot-serverless-deploy/internal/config"
	"github.com/elliot35/nanobot-serverless-deploy/internal/gateway"
	"github.com/elliot35/nanobot-serverless-deploy/internal/httpserver"
	"github.com/elliot35/nanobot-serverless-deploy/internal/logutil"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			bind := strings.TrimSpace(viper.GetString("server.bind"))
			if bind == "" {
				bind = "0.0.0.0"
			}
			port := viper.GetInt("server.port")
			// Cloud Run injects the listen port through PORT.
			if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
				fmt.Sscanf(envPort, "%d", &port)
			}
			if port <= 0 {
				port = 8080
			}

			// Gateway construction is deferred until the first request so a
			// transient store outage at boot is retried instead of wedging
			// the process.
			instance := gateway.NewInstance(func(ctx context.Context) (*gateway.Gateway, error) {
				return gateway.FromConfig(ctx, config.FromViper(), logger)
			})

			srv := httpserver.New(instance, logger)
			return srv.ListenAndServe(fmt.Sprintf("%s:%d", bind, port))
		},
	}

	cmd.Flags().String("server-bind", "", "Bind address (default 0.0.0.0).")
	cmd.Flags().Int("server-port", 0, "Listen port (default 8080, or $PORT).")
	_ = viper.BindPFlag("server.bind", cmd.Flags().Lookup("server-bind"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("server-port"))

	return cmd
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the resolved configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper()
			violations := cfg.Validate()
			if len(violations) == 0 {
				fmt.Println("configuration ok")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(os.Stderr, "- %s\n", v)
			}
			return fmt.Errorf("%d configuration violation(s)", len(violations))
		},
	}
}
