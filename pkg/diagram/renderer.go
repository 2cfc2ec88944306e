// Package diagram renders transaction call trees and value transfers as
// PlantUML sequence diagram markup.
package diagram

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/callflow/pkg/common"
	"github.com/ethpandaops/callflow/pkg/trace"
)

const (
	delegateActivationColor = "#809ECB"
	delegateArrowColor      = "#3471CD"
	failedNoteColor         = "#FFAAAA"
)

// Result summarizes what a render pass wrote.
type Result struct {
	// Messages counts arrows, including self-destruct arrows.
	Messages    int
	Activations int
	// Closes counts returns from activations.
	Closes int
	// Warnings are non-fatal problems such as truncated messages.
	Warnings []string
}

func (r *Result) merge(o *Result) {
	r.Messages += o.Messages
	r.Activations += o.Activations
	r.Closes += o.Closes
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// markup writes newline-prefixed lines and keeps the first write error.
type markup struct {
	w   io.Writer
	err error
}

func (m *markup) line(s string) {
	m.raw("\n" + s)
}

func (m *markup) raw(s string) {
	if m.err != nil {
		return
	}

	_, m.err = io.WriteString(m.w, s)
}

// Renderer turns a flattened trace list into sequence diagram messages.
type Renderer struct {
	log  logrus.FieldLogger
	opts Options
}

// NewRenderer creates a renderer with fixed options.
func NewRenderer(log logrus.FieldLogger, opts Options) *Renderer {
	return &Renderer{
		log:  log.WithField("module", "diagram"),
		opts: opts,
	}
}

// Render writes the messages of one transaction. flat must be in pre-order.
func (r *Renderer) Render(w io.Writer, flat []*trace.Trace) (*Result, error) {
	out := &markup{w: w}
	res := r.render(out, flat, make(map[common.Address]bool))

	if out.err != nil {
		return res, fmt.Errorf("failed to write diagram: %w", out.err)
	}

	return res, nil
}

// childGas is the gas used by the direct children of a trace.
type childGas struct {
	sum     uint64
	unknown bool
}

type pass struct {
	r   *Renderer
	out *markup
	res *Result

	// stack holds the open traces, most recent last.
	stack     []*trace.Trace
	destroyed map[common.Address]bool
	// inactive holds open traces drawn on a destroyed lifeline.
	inactive map[*trace.Trace]bool
	parents  map[*trace.Trace]*trace.Trace
	gas      map[*trace.Trace]*childGas
}

func (r *Renderer) render(out *markup, flat []*trace.Trace, destroyed map[common.Address]bool) *Result {
	p := &pass{
		r:         r,
		out:       out,
		res:       &Result{},
		destroyed: destroyed,
		inactive:  make(map[*trace.Trace]bool),
	}

	p.relate(flat)

	for _, tr := range flat {
		if !r.opts.visible(tr.Depth) {
			continue
		}

		for len(p.stack) > 0 && p.front().To != tr.DelegatedFrom {
			p.close(p.pop())
		}

		if tr.Type == trace.Selfdestruct {
			p.selfdestruct(tr)

			continue
		}

		p.open(tr)
	}

	for len(p.stack) > 0 {
		p.close(p.pop())
	}

	out.raw("\n")

	return p.res
}

// relate derives parents and child gas from depths. Traces beyond the depth
// limit still count towards their parent's gas.
func (p *pass) relate(flat []*trace.Trace) {
	p.parents = make(map[*trace.Trace]*trace.Trace, len(flat))
	p.gas = make(map[*trace.Trace]*childGas)

	last := make([]*trace.Trace, 0, 8)

	for _, tr := range flat {
		for len(last) < tr.Depth {
			last = append(last, nil)
		}

		last = append(last[:tr.Depth], tr)

		if tr.Depth == 0 || last[tr.Depth-1] == nil {
			continue
		}

		parent := last[tr.Depth-1]
		p.parents[tr] = parent

		g, ok := p.gas[parent]
		if !ok {
			g = &childGas{}
			p.gas[parent] = g
		}

		if tr.GasUsed == nil {
			g.unknown = true
		} else {
			g.sum += *tr.GasUsed
		}
	}
}

func (p *pass) front() *trace.Trace {
	return p.stack[len(p.stack)-1]
}

func (p *pass) pop() *trace.Trace {
	tr := p.front()
	p.stack = p.stack[:len(p.stack)-1]

	return tr
}

func (p *pass) open(tr *trace.Trace) {
	parent := p.parents[tr]
	inDelegate := parent != nil && parent.Type == trace.DelegateCall

	p.message(tr, fmt.Sprintf("%s %s %s: %s",
		ID(tr.DelegatedFrom), arrow(tr, inDelegate), ID(tr.To), messageLabel(tr, p.r.opts)))

	p.res.Messages++
	p.stack = append(p.stack, tr)

	pcommon.TracesRendered.WithLabelValues(tr.Type.String()).Inc()

	// A destroyed lifeline is never reactivated.
	if p.destroyed[tr.To] {
		p.inactive[tr] = true

		return
	}

	activation := "activate " + ID(tr.To)
	if tr.Type == trace.DelegateCall {
		activation += " " + delegateActivationColor
	}

	p.out.line(activation)
	p.res.Activations++
}

func (p *pass) selfdestruct(tr *trace.Trace) {
	id := ID(tr.From)

	p.message(tr, fmt.Sprintf("%s -\\ %s: Self-Destruct", id, id))
	p.res.Messages++

	pcommon.TracesRendered.WithLabelValues(tr.Type.String()).Inc()
}

func (p *pass) close(tr *trace.Trace) {
	id := ID(tr.To)

	if tr.Failed() {
		if !p.destroyed[tr.To] {
			p.out.line("destroy " + id)
			p.destroyed[tr.To] = true
		}

		p.message(tr, p.returnLine(tr, ""))
		p.message(tr, fmt.Sprintf("note right of %s %s: %s", id, failedNoteColor, escape(*tr.Error)))

		return
	}

	var params string
	if !p.r.opts.NoParams && len(tr.OutputParams) > 0 {
		params = formatParams(tr.OutputParams, 0)
	}

	p.message(tr, p.returnLine(tr, params))

	if p.r.opts.NoGas || tr.GasUsed == nil {
		return
	}

	g, ok := p.gas[tr]
	if !ok || g.unknown || g.sum >= *tr.GasUsed {
		return
	}

	p.out.line(fmt.Sprintf("note right of %s: %s gas less children", id, humanize.Comma(int64(*tr.GasUsed-g.sum))))
}

// returnLine closes tr. A trace on a destroyed lifeline has no activation to
// return from and gets an explicit reply arrow to its caller instead.
func (p *pass) returnLine(tr *trace.Trace, label string) string {
	if p.inactive[tr] {
		delete(p.inactive, tr)

		line := fmt.Sprintf("%s --> %s", ID(tr.To), ID(tr.DelegatedFrom))
		if label != "" {
			line += ": " + label
		}

		return line
	}

	p.res.Closes++

	if label == "" {
		return "return"
	}

	return "return " + label
}

// message writes a line capped at the maximum message length.
func (p *pass) message(tr *trace.Trace, s string) {
	line, warning := capLine(s, p.r.opts.MaxMessageLength, fmt.Sprintf("message for trace %d", tr.ID))
	if warning != "" {
		p.res.Warnings = append(p.res.Warnings, warning)

		p.r.log.WithFields(logrus.Fields{
			"trace_id": tr.ID,
			"length":   utf8.RuneCountInString(s),
		}).Warn("Truncated diagram message")
	}

	p.out.line(line)
}

// arrow returns the message glyph. Proxy calls are dashed and calls made
// from inside a delegate call are colored.
func arrow(tr *trace.Trace, inDelegate bool) string {
	var glyph string

	switch tr.Type {
	case trace.DelegateCall:
		glyph = "->>"
	case trace.Create:
		glyph = "->o"
	default:
		glyph = "->"
	}

	if tr.Proxy {
		glyph = "-" + glyph
	}

	if inDelegate {
		glyph = "-[" + delegateArrowColor + "]" + glyph[1:]
	}

	return glyph
}

// capLine truncates s to limit runes. The warning is empty unless s was
// truncated, and names the line as what.
func capLine(s string, limit int, what string) (line, warning string) {
	line, truncated := truncate(s, limit)
	if !truncated {
		return s, ""
	}

	pcommon.MessagesTruncated.Inc()

	return line, fmt.Sprintf("%s truncated from %d to %d characters",
		what, utf8.RuneCountInString(s), utf8.RuneCountInString(line))
}
