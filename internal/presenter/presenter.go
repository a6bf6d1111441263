package presenter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/match"
)

// Order is the display order of matches
type Order string

const (
	// OrderDescending lists the largest signed error first
	OrderDescending Order = "desc"
	// OrderAscending keeps the search order, most negative error first
	OrderAscending Order = "asc"
	// OrderAsIs leaves matches untouched
	OrderAsIs Order = "none"
)

// Format is an output format
type Format string

const (
	FormatTable Format = "table"
	FormatText  Format = "text"
	FormatJSON  Format = "json"
)

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrUnknownOrder  = errors.New("unknown output order")
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseOrder validates an order name
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(s)); o {
	case OrderDescending, OrderAscending, OrderAsIs:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

// Presenter writes query results and reports
type Presenter struct {
	format Format
	order  Order
}

// New creates a presenter
func New(format Format, order Order) *Presenter {
	return &Presenter{format: format, order: order}
}

// Arrange returns a copy of matches in the requested display order
func Arrange(matches []match.Match, order Order) []match.Match {
	out := append([]match.Match(nil), matches...)
	switch order {
	case OrderDescending:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Error > out[j].Error })
	case OrderAscending:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Error < out[j].Error })
	}
	return out
}

// Result writes a query result
func (p *Presenter) Result(w io.Writer, res *app.Result) error {
	arranged := *res
	arranged.Matches = Arrange(res.Matches, p.order)

	switch p.format {
	case FormatJSON:
		return writeJSON(w, arranged)
	case FormatText:
		return p.resultText(w, &arranged)
	default:
		return p.resultTable(w, &arranged)
	}
}

func (p *Presenter) resultText(w io.Writer, res *app.Result) error {
	if _, err := fmt.Fprintf(w, "Resultados das %d Previsões mais Próximas (Codinome) e Erro:\n", len(res.Matches)); err != nil {
		return err
	}
	for _, m := range res.Matches {
		if _, err := fmt.Fprintln(w, Line(m)); err != nil {
			return err
		}
	}
	return writePrediction(w, res.Prediction)
}

// Line renders one match as a single line of text
func Line(m match.Match) string {
	codinome := strconv.Itoa(m.Label)
	if m.Name != "" {
		codinome += " (" + m.Name + ")"
	}
	return fmt.Sprintf("Codinome: %s, Erro: %.2f%%, Dados: %s", codinome, m.Error, formatVector(m.Features))
}

func (p *Presenter) resultTable(w io.Writer, res *app.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Codinome", "Nome", "Erro (%)", "Distância", "Fase", "Tipo", "Lda", "Dn", "Metragem", "Nfases"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, m := range res.Matches {
		row := []string{
			strconv.Itoa(m.Label),
			m.Name,
			fmt.Sprintf("%.2f", m.Error),
			fmt.Sprintf("%.4f", m.Distance),
		}
		for _, f := range m.Features {
			row = append(row, formatFloat(f))
		}
		table.Append(row)
	}
	table.Render()

	return writePrediction(w, res.Prediction)
}

func writePrediction(w io.Writer, p *app.Prediction) error {
	if p == nil {
		return nil
	}
	name := ""
	if p.Name != "" {
		name = " (" + p.Name + ")"
	}
	_, err := fmt.Fprintf(w, "Previsão do classificador: %d%s\n", p.Label, name)
	return err
}

// Info writes session information
func (p *Presenter) Info(w io.Writer, info app.Info) error {
	if p.format == FormatJSON {
		return writeJSON(w, info)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Campo", "Valor"})
	table.SetAutoFormatHeaders(false)
	table.Append([]string{"Linhas", strconv.Itoa(info.Rows)})
	table.Append([]string{"Codinomes", strconv.Itoa(info.Labels)})
	table.Append([]string{"Largura", strconv.Itoa(info.Width)})
	table.Append([]string{"Fingerprint", info.Fingerprint})
	table.Append([]string{"K", strconv.Itoa(info.DefaultK)})
	if info.Classifier != "" {
		table.Append([]string{"Classificador", info.Classifier})
	}
	if info.Accuracy != nil {
		table.Append([]string{"Acurácia", fmt.Sprintf("%.4f", *info.Accuracy)})
	}
	table.Render()
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatVector renders features as a bracketed list, keeping a decimal
// point on whole numbers.
func formatVector(v match.Vector) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
