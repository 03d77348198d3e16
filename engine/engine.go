// Package engine submits a batch of transfers concurrently, one goroutine
// per transfer, and collects one outcome per request in request order.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okx/soltransfer/client"
	"github.com/okx/soltransfer/transfer"
)

const tracerName = "github.com/okx/soltransfer/engine"

// Resolver turns a request into signable artifacts.
type Resolver interface {
	Resolve(ctx context.Context, req transfer.Request) (*transfer.Resolved, error)
}

// DialFunc opens a client owned by a single transfer.
type DialFunc func(ctx context.Context, endpoint client.Endpoint) (client.Client, error)

// Recorder observes outcomes as they are produced. Observe is called from
// many goroutines at once.
type Recorder interface {
	Observe(Outcome)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Outcome)

func (f RecorderFunc) Observe(o Outcome) { f(o) }

type multiRecorder []Recorder

func (m multiRecorder) Observe(o Outcome) {
	for _, r := range m {
		r.Observe(o)
	}
}

// MultiRecorder fans each outcome out to every recorder in order.
func MultiRecorder(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func dialSol(ctx context.Context, endpoint client.Endpoint) (client.Client, error) {
	return client.Dial(ctx, endpoint)
}

// Engine submits transfers against one shared endpoint.
type Engine struct {
	endpoint client.Endpoint
	resolver Resolver
	dial     DialFunc
	log      log.Logger
	recorder Recorder
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithDialer(dial DialFunc) Option {
	return func(e *Engine) { e.dial = dial }
}

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func New(endpoint client.Endpoint, resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		endpoint: endpoint,
		resolver: resolver,
		dial:     dialSol,
		log:      log.Root(),
		recorder: MultiRecorder(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitBatch runs every request concurrently and waits for all of them.
// The result has exactly one outcome per request, at the request's index.
// A failing or slow transfer never affects another one.
func (e *Engine) SubmitBatch(ctx context.Context, reqs []transfer.Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(index int, req transfer.Request) {
			defer wg.Done()
			// each goroutine owns exactly one slot
			outcomes[index] = e.submit(ctx, index, req)
			e.observe(outcomes[index])
		}(i, req)
	}
	wg.Wait()

	return outcomes
}

// observe hands o to the recorder. A panicking recorder is logged and
// otherwise ignored.
func (e *Engine) observe(o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Recorder panicked", "index", o.Index, "err", r)
		}
	}()
	e.recorder.Observe(o)
}

// submit runs resolve -> blockhash -> sign -> send and confirm for one
// request. Every error, including a panic, ends up in the outcome.
func (e *Engine) submit(ctx context.Context, index int, req transfer.Request) (out Outcome) {
	out = Outcome{Index: index, Request: req}
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "transfer",
		trace.WithAttributes(
			attribute.Int("transfer.index", index),
			attribute.String("transfer.to", req.To),
			attribute.String("transfer.amount", req.Amount),
		))
	logger := e.log.With("index", index, "to", req.To)

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			out.Elapsed = time.Since(start)
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Kind())
			logger.Warn("Transfer failed", "kind", out.Kind(), "err", out.Err, "elapsed", out.Elapsed)
		} else {
			span.SetAttributes(attribute.String("transfer.signature", out.Signature.String()))
			logger.Info("Transfer confirmed", "signature", out.Signature, "elapsed", out.Elapsed)
		}
		span.End()
	}()

	fail := func(err error) Outcome {
		out.Err = err
		out.Elapsed = time.Since(start)
		return out
	}

	res, err := e.resolver.Resolve(ctx, req)
	if err != nil {
		return fail(err)
	}
	out.From = res.From
	out.Lamports = res.Lamports
	span.AddEvent("resolved", trace.WithAttributes(attribute.String("transfer.from", res.From.String())))

	c, err := e.dial(ctx, e.endpoint)
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	bh, err := c.LatestBlockhash(ctx)
	if err != nil {
		return fail(err)
	}
	span.AddEvent("blockhash", trace.WithAttributes(attribute.String("blockhash", bh.Hash.String())))

	tx, err := res.Transaction(bh.Hash)
	if err != nil {
		return fail(err)
	}
	logger.Debug("Submitting transfer", "from", res.From, "lamports", res.Lamports, "blockhash", bh.Hash)

	submitted := time.Now()
	sig, err := client.SendAndConfirm(ctx, c, e.endpoint, tx, bh.LastValidBlockHeight)
	out.Elapsed = time.Since(submitted)
	out.Signature = sig
	out.Err = err
	return out
}
