package presenter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/raaihank/wellmatch/internal/dataset"
)

// Report writes the exploratory report of a dataset
func (p *Presenter) Report(w io.Writer, r *dataset.Report) error {
	if p.format == FormatJSON {
		return writeJSON(w, r)
	}

	duplicates := "NO"
	if r.HasDuplicates() {
		duplicates = "YES"
	}
	if _, err := fmt.Fprintf(w, "Formato: %d linhas x %d colunas\nLinhas com nfases = 0: %d\nDuplicados: %s (%d)\n\n",
		r.Rows, len(r.Columns), r.ZeroNfases, duplicates, r.Duplicates); err != nil {
		return err
	}

	section(w, "Tipo")
	tipo := newTable(w, []string{"Valor", "Contagem"})
	for _, vc := range r.TipoCounts {
		tipo.Append([]string{vc.Value, strconv.Itoa(vc.Count)})
	}
	tipo.Render()

	section(w, "Colunas numéricas")
	numeric := newTable(w, []string{"Coluna", "Count", "Mean", "Std", "Min", "Max"})
	for _, c := range r.Numeric {
		numeric.Append([]string{
			c.Name,
			strconv.Itoa(c.Count),
			fmt.Sprintf("%.4f", c.Mean),
			fmt.Sprintf("%.4f", c.Std),
			formatFloat(c.Min),
			formatFloat(c.Max),
		})
	}
	numeric.Render()

	section(w, "Colunas categóricas")
	categorical := newTable(w, []string{"Coluna", "Count", "Unique", "Top", "Freq"})
	for _, c := range r.Categorical {
		categorical.Append([]string{c.Name, strconv.Itoa(c.Count), strconv.Itoa(c.Unique), c.Top, strconv.Itoa(c.Freq)})
	}
	categorical.Render()

	section(w, "Correlação")
	corr := newTable(w, append([]string{""}, r.Correlation.Columns...))
	for i, name := range r.Correlation.Columns {
		row := []string{name}
		for _, v := range r.Correlation.Values[i] {
			row = append(row, fmt.Sprintf("%.4f", v))
		}
		corr.Append(row)
	}
	corr.Render()

	if pp := r.Preprocessed; pp != nil {
		section(w, "Pré-processamento")
		pre := newTable(w, []string{"Linhas", "Codinomes", "Descartadas (tipo)", "Descartadas (dn)"})
		pre.Append([]string{
			strconv.Itoa(pp.Rows),
			strconv.Itoa(pp.Labels),
			strconv.Itoa(pp.DroppedTipo),
			strconv.Itoa(pp.DroppedDiameter),
		})
		pre.Render()
	}

	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	return table
}
