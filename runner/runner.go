// Package runner wires configuration, key sources, telemetry and the engine
// into the send and check commands.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okx/soltransfer/config"
	"github.com/okx/soltransfer/engine"
	"github.com/okx/soltransfer/keys"
	"github.com/okx/soltransfer/report"
	"github.com/okx/soltransfer/telemetry"
	"github.com/okx/soltransfer/transfer"
)

const (
	ServiceName = "soltransfer"
	pushJob     = "soltransfer"
)

// ErrTransfersFailed is returned when the run completed but at least one
// transfer did not confirm.
var ErrTransfersFailed = errors.New("one or more transfers failed")

type Options struct {
	ConfigPath   string
	Output       report.Format
	Pushgateway  string
	OTLPEndpoint string
	Version      string

	Stdout io.Writer
	Logger log.Logger

	// engine options appended after the defaults, used by tests
	EngineOptions []engine.Option
}

func (o *Options) defaults() {
	if o.Output == "" {
		o.Output = report.FormatText
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = log.Root()
	}
}

// Send submits every configured transfer concurrently and prints the
// outcomes in configuration order.
func Send(ctx context.Context, opts Options) (report.Summary, error) {
	opts.defaults()
	runID := uuid.NewString()
	logger := opts.Logger.New("run", runID)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return report.Summary{}, err
	}

	tracer, shutdown, err := telemetry.InitTracer(ctx, ServiceName, opts.Version, opts.OTLPEndpoint, runID)
	if err != nil {
		return report.Summary{}, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("Failed to flush traces", "err", err)
		}
	}()

	metrics := telemetry.NewMetrics()
	resolver := transfer.NewResolver(keys.NewRouter(cfg.KeyOptions()...))
	eng := engine.New(cfg.Endpoint(), resolver, append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(metrics),
		engine.WithTracer(tracer),
	}, opts.EngineOptions...)...)

	ctx, span := tracer.Start(ctx, "batch")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("transfers", len(cfg.Transfers)),
	)

	logger.Info("Submitting transfers", "count", len(cfg.Transfers), "rpc", cfg.RPCURL, "commitment", cfg.Commitment)
	start := time.Now()
	outcomes := eng.SubmitBatch(ctx, cfg.Requests())
	wall := time.Since(start)
	span.End()

	summary, err := report.NewPrinter(opts.Stdout, opts.Output).Print(outcomes, wall)
	if err != nil {
		return summary, err
	}
	logger.Info("Batch finished", "confirmed", summary.Confirmed, "failed", summary.Failed, "elapsed", wall)

	if opts.Pushgateway != "" {
		if err := metrics.Push(opts.Pushgateway, pushJob, runID); err != nil {
			logger.Warn("Failed to push metrics", "err", err)
		}
	}

	if summary.Failed > 0 {
		return summary, ErrTransfersFailed
	}
	return summary, nil
}

// Check resolves every transfer without contacting the RPC node and prints
// what would be sent.
func Check(ctx context.Context, opts Options) error {
	opts.defaults()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	resolver := transfer.NewResolver(keys.NewRouter(cfg.KeyOptions()...))
	failed := 0
	for i, req := range cfg.Requests() {
		res, err := resolver.Resolve(ctx, req)
		if err != nil {
			failed++
			opts.Logger.Debug("Transfer does not resolve", "index", i, "err", err)
			fmt.Fprintf(opts.Stdout, "[%d] ❌ %s: %v\n", i, engine.Classify(err), err)
			continue
		}
		fmt.Fprintf(opts.Stdout, "[%d] %s -> %s %s SOL (%d lamports)\n",
			i, res.From, res.To, transfer.FormatLamports(res.Lamports), res.Lamports)
	}

	if failed > 0 {
		return errors.Wrapf(ErrTransfersFailed, "%d of %d", failed, len(cfg.Transfers))
	}
	return nil
}
