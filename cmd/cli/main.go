// Command goph-chat is a terminal client for the chat server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/status"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// rpcTimeout bounds every unary call; the chat stream lives until interrupted.
const rpcTimeout = 30 * time.Second

// settings holds flag values, overridable with GOPHCHAT_CLI_* variables.
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:           "goph-chat",
	Short:         "Terminal client for the goph-chat server",
	Version:       version + " (" + buildDate + ")",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	settings.SetEnvPrefix("GOPHCHAT_CLI")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	pf.String("addr", "localhost:8443", "server address")
	pf.String("cacert", "", "CA certificate (PEM)")
	pf.Bool("insecure", false, "skip certificate verification (dev)")
	pf.Bool("plaintext", false, "connect without TLS (dev)")
	for _, name := range []string{"addr", "cacert", "insecure", "plaintext"} {
		_ = settings.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, historyCmd, channelCmd, uploadCmd, chatCmd)
}

// connection returns the dial settings from flags and environment.
func connection() dialConfig {
	return dialConfig{
		Addr:      settings.GetString("addr"),
		CACert:    settings.GetString("cacert"),
		Insecure:  settings.GetBool("insecure"),
		Plaintext: settings.GetBool("plaintext"),
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// describe renders RPC failures with their status code.
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
	}
	return err.Error()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}
