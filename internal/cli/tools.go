package cli

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yiblet/cliphist/internal/store/oplog"
)

// Synthetic entry lengths follow a log-normal distribution with this mean
// and coefficient of variation, so most entries are short and a few are huge.
const (
	generateMeanLength = 500
	generateLengthCV   = 10
)

var (
	opStyle     = lipgloss.NewStyle().Bold(true)
	offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

// GenerateLog writes n SAVE_TEXT records of random printable text to w and
// returns the number of bytes written. The same seed yields the same log.
func GenerateLog(w io.Writer, n int, seed uint64) (int64, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	sigma2 := math.Log(1 + generateLengthCV*generateLengthCV)
	mu := math.Log(generateMeanLength) - sigma2/2
	sigma := math.Sqrt(sigma2)

	ow := oplog.NewWriter(w)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		length := int(math.Exp(mu + sigma*rng.NormFloat64()))
		if length < 1 {
			length = 1
		}

		sb.Reset()
		sb.Grow(length)
		for j := 0; j < length; j++ {
			sb.WriteByte(byte(0x21 + rng.IntN(0x7e-0x21+1)))
		}
		if err := ow.Write(oplog.Save(sb.String())); err != nil {
			return ow.Written(), fmt.Errorf("failed to write entry %d: %w", i+1, err)
		}
	}
	if err := ow.Flush(); err != nil {
		return ow.Written(), fmt.Errorf("failed to flush log: %w", err)
	}
	return ow.Written(), nil
}

// DumpLog prints one line per record in r. Decoding stops at the first bad
// record, which is reported on its own line and returned.
func DumpLog(w io.Writer, r io.Reader, previewLen int) error {
	rd := oplog.NewReader(r)
	var saves uint32
	for {
		offset := rd.Offset()
		op, err := rd.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(w, "%s records end at offset %d\n", offsetStyle.Render("--"), offset)
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "%s %s\n", offsetStyle.Render(fmt.Sprintf("%10d", offset)), errStyle.Render(err.Error()))
			return err
		}

		var detail string
		if op.Code == oplog.SaveText {
			saves++
			detail = fmt.Sprintf("%s %q", idStyle.Render(fmt.Sprintf("#%d", saves)), truncateRunes(op.Text, previewLen))
		} else {
			detail = idStyle.Render(fmt.Sprintf("#%d", op.DiskID))
		}
		fmt.Fprintf(w, "%s %s %s\n",
			offsetStyle.Render(fmt.Sprintf("%10d", offset)),
			opStyle.Render(fmt.Sprintf("%-16s", op.Code)),
			detail)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// printField writes an aligned "label value" line.
func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(fmt.Sprintf("%-22s", label)), value)
}
