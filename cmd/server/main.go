// Command goph-chat-server runs the chat gRPC server and its database migrations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/and161185/goph-chat/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "goph-chat-server",
	Short:        "Routes chat messages between live connections and tracks presence",
	SilenceUsage: true,
	Version:      version + " (" + buildDate + ")",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile(), "config file (TOML)")
	rootCmd.AddCommand(runCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
