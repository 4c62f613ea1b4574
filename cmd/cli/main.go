package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/goportfolio/internal/adapter/http/dto"
	"github.com/iho/goportfolio/internal/adapter/http/middleware"
	"github.com/iho/goportfolio/internal/infrastructure/config"
	"github.com/iho/goportfolio/internal/infrastructure/logger"
	"github.com/iho/goportfolio/internal/infrastructure/postgres"
)

type options struct {
	baseURL string
	timeout time.Duration
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "goportfolio",
		Short:         "goportfolio CLI tool",
		Long:          `A command line interface for the goportfolio investment tracking API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the goportfolio API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(
		positionCmd(opts),
		portfolioCmd(opts),
		buyCmd(opts),
		reconcileCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}

func positionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Position operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get SYMBOL",
		Short: "Show the aggregate, valuation and XIRR of one instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.PositionResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			if err := client.do(cmd.Context(), http.MethodGet, "/api/v1/positions/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printPosition(cmd.OutOrStdout(), &resp)
			return nil
		},
	})

	return cmd
}

func portfolioCmd(opts *options) *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show every open position and the portfolio total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/portfolio"
			if currency != "" {
				path += "?currency=" + url.QueryEscape(currency)
			}

			var resp dto.PortfolioResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			if err := client.do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printPortfolio(cmd.OutOrStdout(), &resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "Portfolio currency (defaults to the server's base currency)")

	return cmd
}

func buyCmd(opts *options) *cobra.Command {
	var (
		req            dto.RecordBuyRequest
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "buy SYMBOL",
		Short: "Record a dated purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Date == "" {
				req.Date = time.Now().UTC().Format(time.DateOnly)
			}

			var headers map[string]string
			if idempotencyKey != "" {
				headers = map[string]string{middleware.IdempotencyKeyHeader: idempotencyKey}
			}

			var resp dto.TransactionResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			path := "/api/v1/positions/" + url.PathEscape(args[0]) + "/transactions"
			if err := client.do(cmd.Context(), http.MethodPost, path, headers, req, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s: %s x %s on %s (%s)\n",
				resp.ID, resp.Quantity, resp.Price, resp.Date, resp.Amount)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccountID, "account", "", "Account the purchase belongs to")
	cmd.Flags().StringVar(&req.Date, "date", "", "Trade date as YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&req.Quantity, "quantity", "", "Units bought")
	cmd.Flags().StringVar(&req.Price, "price", "", "Unit price in the instrument currency")
	cmd.Flags().BoolVar(&req.ApplyToHolding, "apply", false, "Also fold the purchase into the account's holding")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Key that makes retries record the purchase once")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciliation against broker snapshots",
	}

	var (
		file         string
		quantityTol  string
		valuePercent string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile the system positions against a broker snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readSnapshot(file)
			if err != nil {
				return err
			}
			if quantityTol != "" || valuePercent != "" {
				req.Tolerance = &dto.ToleranceRequest{Quantity: quantityTol, ValuePercent: valuePercent}
			}

			var resp dto.ReconciliationRunResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			if err := client.do(cmd.Context(), http.MethodPost, "/api/v1/reconciliations", nil, req, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printRun(cmd.OutOrStdout(), &resp)
			if !resp.Reconciled {
				return fmt.Errorf("run %s is not reconciled", resp.ID)
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot JSON file, or - for stdin")
	runCmd.Flags().StringVar(&quantityTol, "quantity-tolerance", "", "Absolute quantity tolerance")
	runCmd.Flags().StringVar(&valuePercent, "value-tolerance", "", "Value tolerance in percent")
	_ = runCmd.MarkFlagRequired("file")

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent reconciliation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListRunsResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			path := "/api/v1/reconciliations?limit=" + strconv.Itoa(limit)
			if err := client.do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printRuns(cmd.OutOrStdout(), resp.Runs)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one reconciliation run with its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ReconciliationRunResponse
			client := newAPIClient(opts.baseURL, opts.timeout)
			if err := client.do(cmd.Context(), http.MethodGet, "/api/v1/reconciliations/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printRun(cmd.OutOrStdout(), &resp)
			return nil
		},
	}

	cmd.AddCommand(runCmd, listCmd, getCmd)

	return cmd
}

// migrateCmd applies schema migrations directly, using the server's configuration.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	migrator := func() (*postgres.Migrator, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})
		return postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				return m.Down()
			},
		},
	)

	return cmd
}

func readSnapshot(path string) (*dto.RunReconciliationRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req dto.RunReconciliationRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid snapshot file: %w", err)
	}
	if len(req.Positions) == 0 {
		return nil, fmt.Errorf("snapshot file has no positions")
	}

	return &req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPosition(w io.Writer, p *dto.PositionResponse) {
	fmt.Fprintf(w, "%s (%s, %s)\n", p.Instrument.Symbol, p.Instrument.Name, p.Instrument.PricingModel)
	fmt.Fprintf(w, "Quantity:     %s\n", p.Position.TotalQuantity)
	fmt.Fprintf(w, "Average cost: %s\n", p.Position.AverageCost)
	fmt.Fprintf(w, "Invested:     %s\n", p.Position.Invested)

	if p.Valuation != nil {
		fmt.Fprintf(w, "Value:        %s\n", p.Valuation.CurrentValue)
		fmt.Fprintf(w, "P&L:          %s (%s%%)\n", p.Valuation.ProfitLoss, p.Valuation.ProfitLossPercent)
	} else {
		fmt.Fprintf(w, "Value:        n/a (%s)\n", p.ValuationError)
	}

	if p.XIRR != nil {
		fmt.Fprintf(w, "XIRR:         %s%%\n", p.XIRR.Percent)
	} else {
		fmt.Fprintf(w, "XIRR:         n/a (%s)\n", p.XIRRError)
	}
}

func printPortfolio(w io.Writer, p *dto.PortfolioResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQUANTITY\tINVESTED\tVALUE\tP&L %\tXIRR %")
	for _, pos := range p.Positions {
		value, pct, xirr := "n/a", "n/a", "n/a"
		if pos.Valuation != nil {
			value = pos.Valuation.CurrentValue.String()
			pct = pos.Valuation.ProfitLossPercent.String()
		}
		if pos.XIRR != nil {
			xirr = pos.XIRR.Percent.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			pos.Instrument.Symbol, pos.Position.TotalQuantity, pos.Position.Invested, value, pct, xirr)
	}
	_ = tw.Flush()

	if p.Total != nil {
		fmt.Fprintf(w, "Total: %s invested, %s value, %s%%\n", p.Total.Invested, p.Total.CurrentValue, p.Total.ProfitLossPercent)
	} else if p.TotalError != "" {
		fmt.Fprintf(w, "Total: n/a (%s)\n", p.TotalError)
	}
	if p.XIRR != nil {
		fmt.Fprintf(w, "XIRR:  %s%%\n", p.XIRR.Percent)
	} else if p.XIRRError != "" {
		fmt.Fprintf(w, "XIRR:  n/a (%s)\n", p.XIRRError)
	}
}

func printRun(w io.Writer, run *dto.ReconciliationRunResponse) {
	fmt.Fprintf(w, "Run %s (snapshot %s) reconciled=%t\n", run.ID, run.SnapshotID, run.Reconciled)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATUS\tQTY DIFF\tDISCREPANCY %")
	for _, e := range run.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Symbol, e.Status, e.QuantityDiff, e.DiscrepancyPercent)
	}
	_ = tw.Flush()
}

func printRuns(w io.Writer, runs []*dto.ReconciliationRunResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTOTAL\tMATCHED\tRECONCILED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\n",
			run.ID, run.CreatedAt.Format(time.RFC3339), run.Total, run.Counts["MATCHED"], run.Reconciled)
	}
	_ = tw.Flush()
}
