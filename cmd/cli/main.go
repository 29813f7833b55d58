package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"loostaar/adapters/excel"
	"loostaar/app"
	"loostaar/domain/genotype"
	"loostaar/domain/loo"
	"loostaar/internal/config"
	"loostaar/internal/container"
	"loostaar/internal/report"
	"loostaar/internal/visualize"
	"loostaar/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "loostaar",
		Short: "Leave-one-out sensitivity analysis for rare-variant association tests",
	}

	rootCmd.AddCommand(
		newRunCmd(container.New),
		newPlotCmd(),
		newReportCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRunCmd builds the run command around a container factory so the
// association backend can be swapped
func newRunCmd(newContainer func(*config.Config) (*container.Container, error)) *cobra.Command {
	var (
		nullModel   string
		positions   string
		out         string
		label       string
		mafCutoff   float64
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run [genotypes.csv|xlsx]",
		Short: "Compute the baseline and leave-one-out p-values for a gene",
		Long: `Compute the omnibus p-value with all variants, then once per variant with
that variant left out, and write the influence table.

The association backend is taken from ASSOC_BACKEND and related variables.

Example: loostaar run gene1.csv --null-model obj_nullmodel.rds --out gene1_loo.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("maf") {
				cfg.Analysis.MAFCutoff = mafCutoff
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Analysis.Concurrency = concurrency
			}

			c, err := newContainer(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			ctx := cmd.Context()
			if cfg.Analysis.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Analysis.RunTimeout)
				defer cancel()
			}

			m, err := excel.NewDataReader(excel.DefaultExcelConfig(args[0])).ReadMatrix(ctx)
			if err != nil {
				return err
			}
			var pos genotype.Positions
			if positions != "" {
				if pos, err = excel.NewDataReader(excel.DefaultExcelConfig(positions)).ReadPositions(ctx); err != nil {
					return err
				}
			}
			if label == "" {
				label = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			table, err := c.LeaveOneOut.Run(ctx, app.RunRequest{
				Matrix:      m,
				NullModel:   ports.NullModelRef(nullModel),
				MAFCutoff:   cfg.Analysis.MAFCutoff,
				Concurrency: cfg.Analysis.Concurrency,
				Label:       label,
				Positions:   pos,
			})
			if err != nil {
				return err
			}

			for _, w := range table.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %s: %s\n", w.Kind, w.VariantID, w.Message)
			}
			if out == "" {
				return excel.WriteCSV(cmd.OutOrStdout(), table)
			}
			if err := excel.WriteFile(out, table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d variants, %d missing, baseline p=%g, wrote %s\n",
				len(table.Rows), table.MissingCount(), table.BaselinePValue, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&nullModel, "null-model", "", "Fitted null model handle (e.g. an .rds path)")
	cmd.Flags().StringVar(&positions, "positions", "", "CSV/XLSX with VariantID and Position columns")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output table (.csv or .xlsx); stdout CSV when empty")
	cmd.Flags().StringVar(&label, "label", "", "Run label (defaults to the input file name)")
	cmd.Flags().Float64Var(&mafCutoff, "maf", config.DefaultMAFCutoff, "Minor allele frequency cutoff")
	cmd.Flags().IntVar(&concurrency, "concurrency", config.DefaultConcurrency, "Parallel association test calls")
	_ = cmd.MarkFlagRequired("null-model")

	return cmd
}

// readTable loads a result table and joins positions from a side file
func readTable(ctx context.Context, path, positions string) (*loo.Table, genotype.Positions, error) {
	table, pos, err := excel.NewDataReader(excel.DefaultExcelConfig(path)).ReadTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	if positions != "" {
		side, err := excel.NewDataReader(excel.DefaultExcelConfig(positions)).ReadPositions(ctx)
		if err != nil {
			return nil, nil, err
		}
		for id, p := range side {
			pos[id] = p
		}
	}
	if table.Label == "" {
		table.Label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return table, pos, nil
}

func newPlotCmd() *cobra.Command {
	var (
		positions string
		out       string
		title     string
		yMin      float64
		yMax      float64
	)

	cmd := &cobra.Command{
		Use:   "plot [table.csv|xlsx]",
		Short: "Plot ΔLog10P against genomic position",
		Long: `Render the influence scatter for a result table. Positions come from a
Position column in the table or from --positions.

Example: loostaar plot gene1_loo.csv --positions gene1_pos.csv -o gene1.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, pos, err := readTable(cmd.Context(), args[0], positions)
			if err != nil {
				return err
			}

			opts := visualize.Options{Title: title}
			if cmd.Flags().Changed("ymin") {
				opts.YMin = &yMin
			}
			if cmd.Flags().Changed("ymax") {
				opts.YMax = &yMax
			}

			format := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := visualize.Render(f, format, table.Rows, pos, opts); err != nil {
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&positions, "positions", "", "CSV/XLSX with VariantID and Position columns")
	cmd.Flags().StringVarP(&out, "out", "o", "loo_influence.svg", "Output image (.svg, .png or .pdf)")
	cmd.Flags().StringVar(&title, "title", "", "Chart title")
	cmd.Flags().Float64Var(&yMin, "ymin", 0, "Lower y-axis bound")
	cmd.Flags().Float64Var(&yMax, "ymax", 0, "Upper y-axis bound")

	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		format string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "report [table.csv|xlsx]",
		Short: "Summarise a result table as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _, err := readTable(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			switch format {
			case "md", "markdown":
				_, err = fmt.Fprint(cmd.OutOrStdout(), report.Markdown(table, top))
			case "html":
				_, err = cmd.OutOrStdout().Write(report.HTML(table, top))
			default:
				err = fmt.Errorf("unknown format %q (want md or html)", format)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "Output format: md or html")
	cmd.Flags().IntVar(&top, "top", report.DefaultTop, "Ranked variants to list")

	return cmd
}
