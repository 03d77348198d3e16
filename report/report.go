// Package report prints transfer outcomes for humans or machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/okx/soltransfer/engine"
	"github.com/okx/soltransfer/transfer"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// Summary aggregates a finished batch.
type Summary struct {
	Total     int           `json:"total"`
	Confirmed int           `json:"confirmed"`
	Failed    int           `json:"failed"`
	Lamports  uint64        `json:"lamports_confirmed"`
	Wall      time.Duration `json:"-"`
	WallMs    int64         `json:"wall_ms"`
}

func Summarize(outcomes []engine.Outcome, wall time.Duration) Summary {
	s := Summary{Total: len(outcomes), Wall: wall, WallMs: wall.Milliseconds()}
	for _, o := range outcomes {
		if o.Confirmed() {
			s.Confirmed++
			s.Lamports += o.Lamports
		} else {
			s.Failed++
		}
	}
	return s
}

type record struct {
	Index     int    `json:"index"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Lamports  uint64 `json:"lamports"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func newRecord(o engine.Outcome) record {
	r := record{
		Index:     o.Index,
		To:        o.Request.To,
		Lamports:  o.Lamports,
		Status:    "confirmed",
		Error:     o.Cause(),
		Kind:      o.Kind(),
		ElapsedMs: o.ElapsedMs(),
	}
	if !o.Confirmed() {
		r.Status = "failed"
	}
	if !o.From.IsZero() {
		r.From = o.From.String()
	}
	if o.Signature != (solana.Signature{}) {
		r.Signature = o.Signature.String()
	}
	return r
}

// Printer writes one line per outcome followed by a summary line.
type Printer struct {
	w      io.Writer
	format Format
	enc    *json.Encoder
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format, enc: json.NewEncoder(w)}
}

func (p *Printer) Outcome(o engine.Outcome) error {
	if p.format == FormatJSON {
		return p.enc.Encode(newRecord(o))
	}

	var err error
	if o.Confirmed() {
		_, err = fmt.Fprintf(p.w, "[%d] %s SOL -> %s ✅ Tx sent: %s (%d ms)\n",
			o.Index, transfer.FormatLamports(o.Lamports), o.Request.To, o.Signature, o.ElapsedMs())
	} else {
		_, err = fmt.Fprintf(p.w, "[%d] -> %s ❌ Error: %s (%d ms)\n",
			o.Index, o.Request.To, o.Cause(), o.ElapsedMs())
	}
	return err
}

func (p *Printer) Summary(s Summary) error {
	if p.format == FormatJSON {
		return p.enc.Encode(struct {
			Summary Summary `json:"summary"`
		}{s})
	}
	_, err := fmt.Fprintf(p.w, "%d transfers: %d confirmed, %d failed, %s SOL moved in %d ms\n",
		s.Total, s.Confirmed, s.Failed, transfer.FormatLamports(s.Lamports), s.WallMs)
	return err
}

// Print writes every outcome in order, then the summary.
func (p *Printer) Print(outcomes []engine.Outcome, wall time.Duration) (Summary, error) {
	for _, o := range outcomes {
		if err := p.Outcome(o); err != nil {
			return Summary{}, errors.Wrap(err, "write outcome")
		}
	}
	s := Summarize(outcomes, wall)
	if err := p.Summary(s); err != nil {
		return Summary{}, errors.Wrap(err, "write summary")
	}
	return s, nil
}
