package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rentbook/internal/cli"
	"rentbook/internal/config"
	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/report"
	"rentbook/internal/services"
	gsheet "rentbook/internal/sheets/google"
	"rentbook/internal/storage"
	"rentbook/internal/worker"
)

type app struct {
	cfg    *config.Config
	logger *log.Logger
	open   func() (*cli.Store, error)
	now    func() time.Time
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rentbook-admin",
		Short:         "Rentbook administration CLI",
		Long:          `Inspect balances and reports and maintain the rentbook data store from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		tenantsCmd(a),
		balanceCmd(a),
		summaryCmd(a),
		migrateCmd(a),
		resyncCmd(a),
		versionCmd(),
	)
	return root
}

// withRepository opens the store for the duration of fn.
func (a *app) withRepository(ctx context.Context, fn func(repo *services.Repository) error) error {
	store, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("Store close error", log.FieldError, err)
		}
	}()

	repo := services.NewRepository(store, nil)
	if err := repo.Refresh(ctx); err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	return fn(repo)
}

func (a *app) month(cmd *cobra.Command) (core.YearMonth, error) {
	raw, _ := cmd.Flags().GetString("month")
	if raw == "" {
		return core.YearMonthOf(a.now()), nil
	}
	ym, err := core.ParseYearMonth(raw)
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("invalid --month %q: %w", raw, err)
	}
	return ym, nil
}

func (a *app) money(m core.Money) string {
	return m.Format(a.cfg.Currency)
}

func tenantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "List tenants with their ending balance for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := a.month(cmd)
			if err != nil {
				return err
			}
			return a.withRepository(cmd.Context(), func(repo *services.Repository) error {
				balances, err := repo.Balances(cmd.Context(), month)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(balances) == 0 {
					fmt.Fprintln(out, "No tenants found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tNAME\tPROPERTY\tRENT\tBALANCE %s\n", month.Label())
				for _, tb := range balances {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tb.Tenant.ID, tb.Tenant.Name, tb.Tenant.Property,
						a.money(tb.Tenant.Rent), a.money(tb.Balance.EndingBalance))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().String("month", "", "report month as YYYY-MM (default current month)")
	return cmd
}

func balanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a tenant's balance for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			history, _ := cmd.Flags().GetBool("history")
			month, err := a.month(cmd)
			if err != nil {
				return err
			}
			return a.withRepository(cmd.Context(), func(repo *services.Repository) error {
				tenant, err := repo.Tenant(cmd.Context(), tenantID)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return fmt.Errorf("tenant %q not found", tenantID)
					}
					return err
				}
				bal, err := repo.Balance(cmd.Context(), tenantID, month)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s), %s\n", tenant.Name, tenant.Property, month.Label())
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintf(w, "Rent due\t%s\t\n", a.money(bal.RentDue))
				fmt.Fprintf(w, "Balance forwarded\t%s\t\n", a.money(bal.BalanceForwarded))
				fmt.Fprintf(w, "Total due\t%s\t\n", a.money(bal.TotalDue))
				fmt.Fprintf(w, "Paid this month\t%s\t\n", a.money(bal.PaidThisMonth))
				fmt.Fprintf(w, "Ending balance\t%s\t\n", a.money(bal.EndingBalance))
				if err := w.Flush(); err != nil {
					return err
				}
				if !history {
					return nil
				}

				entries, err := repo.Statement(cmd.Context(), tenantID, month)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "MONTH\tOPENING\tCHARGED\tPAID\tCLOSING")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Month, a.money(e.Opening), a.money(e.Charged),
						a.money(e.Paid), a.money(e.Closing))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().String("tenant", "", "tenant ID")
	cmd.Flags().String("month", "", "report month as YYYY-MM (default current month)")
	cmd.Flags().Bool("history", false, "print the month-by-month statement")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func summaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and net profit by month",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := report.DefaultRange(core.DateOf(a.now()))
			for _, bound := range []struct {
				flag string
				dst  *core.Date
			}{{"from", &rng.From}, {"to", &rng.To}} {
				raw, _ := cmd.Flags().GetString(bound.flag)
				if raw == "" {
					continue
				}
				d, err := core.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("invalid --%s %q: %w", bound.flag, raw, err)
				}
				*bound.dst = d
			}

			return a.withRepository(cmd.Context(), func(repo *services.Repository) error {
				d, err := repo.Dashboard(cmd.Context(), rng)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s to %s\n", rng.From, rng.To)
				if len(d.Months) == 0 {
					fmt.Fprintln(out, "No financial data available for the selected period.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSES\tNET")
				for _, m := range d.Months {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Month, a.money(m.Income), a.money(m.Expenses), a.money(m.Net))
				}
				fmt.Fprintf(w, "TOTAL\t%s\t%s\t%s\n", a.money(d.Totals.Income), a.money(d.Totals.Expenses), a.money(d.Totals.Net))
				return w.Flush()
			})
		},
	}
	cmd.Flags().String("from", "", "first day as YYYY-MM-DD (default one year ago)")
	cmd.Flags().String("to", "", "last day as YYYY-MM-DD (default today)")
	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DataBackend != config.BackendSQLite {
				return fmt.Errorf("migrate requires the %s backend, configured backend is %s",
					config.BackendSQLite, a.cfg.DataBackend)
			}
			// NewSQLiteStore applies pending migrations on open
			store, err := storage.NewSQLiteStore(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			v, dirty, err := storage.SchemaVersion(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			counts, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Schema at version %d (dirty: %t)\n", v, dirty)
			for _, coll := range []string{storage.CollectionTenants, storage.CollectionPayments, storage.CollectionExpenses} {
				fmt.Fprintf(out, "%s: %d\n", coll, counts[coll])
			}
			return nil
		},
	}
}

func resyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rewrite the Google Sheets mirror from the data store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.SheetsEnabled() {
				return errors.New("GOOGLE_SPREADSHEET_ID is not set")
			}
			store, err := a.open()
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := gsheet.New(cmd.Context(), a.cfg.GoogleSpreadsheetID, gsheet.Credentials{
				JSON: a.cfg.GoogleServiceAccountJSON,
				File: a.cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}
			if err := client.EnsureTabs(cmd.Context()); err != nil {
				return err
			}
			if err := worker.NewSyncWorker(store, client).Resync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mirror rewritten.")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rentbook-admin", version)
		},
	}
}
