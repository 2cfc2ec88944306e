package diagram

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/ethpandaops/callflow/pkg/trace"
)

const (
	// lineBreak is a line break inside a PlantUML message label.
	lineBreak   = `\n`
	indent      = "  "
	etherDigits = 18
	// shortBytes is the longest byte string shown in full.
	shortBytes = 8
)

// functionText renders the called function with its input parameters.
func functionText(tr *trace.Trace, opts Options) string {
	switch {
	case tr.Type == trace.Create:
		if !tr.ParamsDecoded {
			return "constructor(?)"
		}

		if opts.NoParams {
			return "constructor()"
		}

		return "constructor(" + formatParams(tr.InputParams, 0) + ")"
	case len(tr.FuncSelector) == 0:
		return "fallback()"
	}

	name := tr.FuncName
	if name == "" {
		name = tr.Selector()
	}

	if opts.NoParams || !tr.ParamsDecoded {
		return name + "()"
	}

	return name + "(" + formatParams(tr.InputParams, 0) + ")"
}

// messageLabel is the function text followed by the gas and value lines.
func messageLabel(tr *trace.Trace, opts Options) string {
	var b strings.Builder

	b.WriteString(functionText(tr, opts))

	if !opts.NoGas && tr.GasUsed != nil {
		b.WriteString(lineBreak)
		b.WriteString(humanize.Comma(int64(*tr.GasUsed)))
		b.WriteString(" gas")
	}

	if !opts.NoEther && tr.HasValue() {
		b.WriteString(lineBreak)
		b.WriteString(formatAmount(tr.Value, etherDigits))
		b.WriteString(" ")
		b.WriteString(opts.Currency)
	}

	return b.String()
}

func formatParams(params []trace.Param, level int) string {
	parts := make([]string, 0, len(params))

	for _, p := range params {
		parts = append(parts, formatParam(p, level))
	}

	return strings.Join(parts, ", ")
}

func formatParam(p trace.Param, level int) string {
	v := formatParamValue(p, level)
	if p.Name == "" {
		return v
	}

	return p.Name + ": " + v
}

// formatParamValue expands tuples and arrays one indent per nesting level.
func formatParamValue(p trace.Param, level int) string {
	if !p.IsComposite() {
		return formatScalar(p.Value)
	}

	open, closing := "{", "}"
	if p.IsArray() {
		open, closing = "[", "]"
	}

	if len(p.Components) == 0 {
		return open + closing
	}

	pad := strings.Repeat(indent, level+1)
	parts := make([]string, 0, len(p.Components))

	for _, c := range p.Components {
		parts = append(parts, lineBreak+pad+formatParam(c, level+1))
	}

	return open + strings.Join(parts, ",") + lineBreak + strings.Repeat(indent, level) + closing
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case common.Address:
		return ShortAddress(x)
	case common.Hash:
		return shortHex(x.Bytes())
	case []byte:
		return shortHex(x)
	case *big.Int:
		return bigComma(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return escape(x)
	default:
		return escape(fmt.Sprint(x))
	}
}

func shortHex(b []byte) string {
	if len(b) <= shortBytes {
		return hexutil.Encode(b)
	}

	return hexutil.Encode(b[:4]) + ".." + hexutil.Encode(b[len(b)-4:])[2:]
}

// escape keeps a value on one markup line.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", lineBreak)
	s = strings.ReplaceAll(s, "\n", lineBreak)

	return strings.ReplaceAll(s, "\r", lineBreak)
}

// formatAmount scales v down by digits decimals.
func formatAmount(v *big.Int, digits int) string {
	return decimal.NewFromBigInt(v, int32(-digits)).String()
}

// formatSignedAmount is formatAmount with an explicit plus sign for gains.
func formatSignedAmount(v *big.Int, digits int) string {
	s := formatAmount(v, digits)
	if v.Sign() > 0 {
		return "+" + s
	}

	return s
}

// bigComma formats v with thousands separators. humanize.BigComma changes
// its argument, so it is given a copy.
func bigComma(v *big.Int) string {
	return humanize.BigComma(new(big.Int).Set(v))
}

// truncate shortens s to at most limit runes. A cut never splits a rune or
// leaves a dangling backslash of a line break escape. It reports whether s
// was shortened.
func truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}

	cut := string([]rune(s)[:limit])

	return strings.TrimRight(cut, `\`), true
}
