package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/okx/soltransfer/config"
	"github.com/okx/soltransfer/mocknode"
	"github.com/okx/soltransfer/report"
	"github.com/okx/soltransfer/runner"
)

var version = "dev"

const (
	FlagConfigFile   = "config-file"
	FlagOutput       = "output"
	FlagLogLevel     = "log-level"
	FlagPushgateway  = "pushgateway"
	FlagOTLPEndpoint = "otlp-endpoint"
)

var (
	configPath   string
	output       string
	logLevel     string
	pushgateway  string
	otlpEndpoint string
)

func setupLogger() error {
	lvl, err := log.LvlFromString(logLevel)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "soltransfer",
		Short:   "Concurrent SOL transfer submission tool",
		Long:    `Submit a batch of independent SOL transfers concurrently and report the outcome and latency of each one.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, FlagLogLevel, "info", "Log level (trace, debug, info, warn, error, crit)")

	rootCmd.AddCommand(
		sendCmd(),
		checkCmd(),
		mockNodeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit every configured transfer and wait for confirmation",
		Long: `Submit every transfer from the configuration file concurrently, wait for each
to reach the configured commitment and print one line per transfer.

Exits with status 1 when any transfer failed.

Example:
  soltransfer send -f ./config.yaml --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(output)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err = runner.Send(ctx, runner.Options{
				ConfigPath:   configPath,
				Output:       format,
				Pushgateway:  pushgateway,
				OTLPEndpoint: otlpEndpoint,
				Version:      version,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, FlagConfigFile, "f", config.DefaultFile, "Path to the transfer configuration file")
	cmd.Flags().StringVarP(&output, FlagOutput, "o", string(report.FormatText), "Output format: text or json")
	cmd.Flags().StringVar(&pushgateway, FlagPushgateway, "", "Prometheus Pushgateway URL to push run metrics to")
	cmd.Flags().StringVar(&otlpEndpoint, FlagOTLPEndpoint, "", "OTLP gRPC collector address (host:port) for traces")

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve every configured transfer without sending anything",
		Long: `Load every sender key and validate every destination and amount, printing
what would be sent. The RPC node is not contacted.

Example:
  soltransfer check -f ./config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Check(cmd.Context(), runner.Options{ConfigPath: configPath})
		},
	}

	cmd.Flags().StringVarP(&configPath, FlagConfigFile, "f", config.DefaultFile, "Path to the transfer configuration file")

	return cmd
}

func mockNodeCmd() *cobra.Command {
	var (
		addr         string
		latency      time.Duration
		confirmAfter int
		rejectKeys   []string
	)

	cmd := &cobra.Command{
		Use:   "mock-node",
		Short: "Serve an in-memory Solana JSON-RPC node for local runs",
		Long: `Serve a mock Solana JSON-RPC node that accepts the calls soltransfer makes.

Example:
  soltransfer mock-node --addr 127.0.0.1:8899 --latency 200ms --reject <fee payer>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mocknode.Config{
				Latency:      latency,
				ConfirmAfter: confirmAfter,
				Reject:       make(map[solana.PublicKey]string),
			}
			for _, k := range rejectKeys {
				pk, err := solana.PublicKeyFromBase58(k)
				if err != nil {
					return fmt.Errorf("invalid --reject key %q: %w", k, err)
				}
				cfg.Reject[pk] = "Attempt to debit an account but found no record of a prior credit."
			}

			node := mocknode.New(cfg)
			srv := &http.Server{Addr: addr, Handler: node, ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.Info("Mock node listening", "addr", addr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-sigCh:
			}

			log.Info("Shutting down mock node")
			node.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8899", "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Latency added to every request")
	cmd.Flags().IntVar(&confirmAfter, "confirm-after", 1, "Status polls answered as processed before finalized")
	cmd.Flags().StringSliceVar(&rejectKeys, "reject", nil, "Fee payers whose transactions fail preflight")

	return cmd
}
