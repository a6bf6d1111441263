package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raaihank/wellmatch/internal/dataset"
	"github.com/raaihank/wellmatch/internal/match"
	"github.com/raaihank/wellmatch/internal/presenter"
)

// featurePrompts are asked in order when no --features flag is given
var featurePrompts = []string{"Fase", "Tipo", "Lda", "Dn", "Metragem", "Nfases"}

func newQueryCmd(rt *cliState) *cobra.Command {
	var (
		features string
		k        int
		format   string
		order    string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find the closest well segments for one input",
		Example: `  wellmatch query --features "1,VERTICAL,100,2 1/2,50,1"
  wellmatch query --format json --order asc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = rt.cfg.Output.Format
			}
			if order == "" {
				order = rt.cfg.Output.Order
			}
			f, err := presenter.ParseFormat(format)
			if err != nil {
				return err
			}
			o, err := presenter.ParseOrder(order)
			if err != nil {
				return err
			}

			session, release, err := openSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer release()

			var input match.Vector
			if features != "" {
				input, err = parseFeatures(features)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Insira os dados de entrada:")
				input, err = promptFeatures(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			res, err := session.Query(cmd.Context(), input, k)
			if err != nil {
				return err
			}
			return presenter.New(f, o).Result(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&features, "features", "f", "", "Comma separated fase,tipo,lda,dn,metragem,nfases")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of distinct codinomes to return (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, text or json")
	cmd.Flags().StringVar(&order, "order", "", "Display order: desc, asc or none")

	return cmd
}

// parseFeatures reads "fase,tipo,lda,dn,metragem,nfases". Tipo may be 0/1
// or VERTICAL/HORIZONTAL and dn may be a fraction such as "2 1/2".
func parseFeatures(s string) (match.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != match.FeatureWidth {
		return nil, fmt.Errorf("%w: expected %d comma separated features, got %d",
			match.ErrInvalidInput, match.FeatureWidth, len(parts))
	}

	v := make(match.Vector, len(parts))
	for i, p := range parts {
		f, err := parseFeature(i, p)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return v, nil
}

func parseFeature(i int, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch i {
	case 1:
		if tipo, ok := dataset.EncodeTipo(raw); ok {
			return tipo, nil
		}
	case 3:
		dn, err := dataset.ParseDiameter(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", match.ErrInvalidInput, featurePrompts[i], err)
		}
		return dn, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", match.ErrInvalidInput, featurePrompts[i], raw)
	}
	return f, nil
}

// promptFeatures asks for each feature on its own line
func promptFeatures(in io.Reader, out io.Writer) (match.Vector, error) {
	scanner := bufio.NewScanner(in)
	v := make(match.Vector, len(featurePrompts))

	for i, label := range featurePrompts {
		fmt.Fprintf(out, "%s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: missing value for %s", match.ErrInvalidInput, label)
		}
		f, err := parseFeature(i, scanner.Text())
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return v, nil
}
