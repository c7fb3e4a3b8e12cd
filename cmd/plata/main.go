package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jsarmiento/plata/internal/config"
	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/service"
	"github.com/jsarmiento/plata/internal/statement"
)

var (
	flagLimit     int
	flagPassword  string
	flagAccountID string
)

var rootCmd = &cobra.Command{
	Use:   "plata",
	Short: "Transaction ingestion and reconciliation for Colombian bank accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import transactions from SMS dumps or statement files",
}

var importSMSCmd = &cobra.Command{
	Use:   "sms <dump.json>",
	Short: "Import a batch of historical SMS messages from a JSON dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := newFileProvider(args[0])
		if err != nil {
			return err
		}
		engine, db, err := setup(provider)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := engine.ImportHistory(cmd.Context(), flagLimit)
		if err != nil {
			return err
		}
		printResult(res.ImportResult)
		if res.CanImportMore {
			fmt.Println("more messages remain, run again to continue")
		}
		return nil
	},
}

var importStatementCmd = &cobra.Command{
	Use:   "statement <file>",
	Short: "Reconcile a bank statement (xls or pdf) against the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		engine, db, err := setup(noProvider{})
		if err != nil {
			return err
		}
		defer db.Close()

		st, err := engine.DecodeStatement(data, statementKind(args[0]), flagPassword)
		if err != nil {
			return err
		}

		accountID := flagAccountID
		if accountID == "" {
			acct, err := engine.ResolveStatementAccount(cmd.Context(), st)
			if err != nil {
				return err
			}
			accountID = acct.ID
			fmt.Printf("account: %s (%s)\n", acct.Name, acct.ID)
		}

		res, err := engine.ReconcileStatement(cmd.Context(), accountID, st)
		if err != nil {
			return err
		}
		printResult(res)
		fmt.Printf("balance set to %d\n", st.Balance)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import a full-data JSON backup",
}

var backupExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write all local data to a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, db, err := setup(noProvider{})
		if err != nil {
			return err
		}
		defer db.Close()

		export, err := engine.ExportBackup(cmd.Context())
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return err
		}
		fmt.Printf("exported %d accounts, %d categories, %d transactions\n",
			len(export.Data.Accounts), len(export.Data.Categories), len(export.Data.Transactions))
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a backup file from another device into local data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		export, err := model.ParseBackup(data)
		if err != nil {
			return err
		}
		engine, db, err := setup(noProvider{})
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := engine.ImportBackup(cmd.Context(), export, service.StrategyMerge)
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Retry extraction for every queued unparsed message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, db, err := setup(noProvider{})
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := engine.ReprocessFailed(cmd.Context())
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and the unprocessed message count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, db, err := setup(noProvider{})
		if err != nil {
			return err
		}
		defer db.Close()

		state, err := engine.State(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("permission:  %s\n", state.Permission)
		fmt.Printf("listening:   %v\n", state.Listening)
		fmt.Printf("unprocessed: %d\n", state.Unprocessed)
		return nil
	},
}

// setup runs the startup sequence shared by every command: config, schema,
// seed data, engine.
func setup(provider service.SMSProvider) (*service.Engine, *sql.DB, error) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	if err := database.RunMigrations(cfg.Database.Path, migrationsPath()); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	if err := database.SeedDefaults(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("seed defaults: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "plata",
	})
	return service.New(db, provider, logger), db, nil
}

func migrationsPath() string {
	if p := os.Getenv("PLATA_MIGRATIONS"); p != "" {
		return p
	}
	return "internal/database/migrations"
}

func statementKind(path string) statement.Kind {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return statement.KindPDF
	}
	return statement.KindExcel
}

func printResult(res model.ImportResult) {
	fmt.Printf("accounts:     %d imported, %d skipped, %d failed\n",
		res.Accounts.Imported, res.Accounts.Skipped, res.Accounts.Failed)
	fmt.Printf("categories:   %d imported, %d skipped, %d failed\n",
		res.Categories.Imported, res.Categories.Skipped, res.Categories.Failed)
	fmt.Printf("transactions: %d imported, %d skipped, %d failed\n",
		res.Transactions.Imported, res.Transactions.Skipped, res.Transactions.Failed)
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if res.Suppressed > 0 {
		fmt.Printf("  (%d further errors suppressed)\n", res.Suppressed)
	}
}

func init() {
	importSMSCmd.Flags().IntVar(&flagLimit, "limit", 100, "Maximum messages to import in this batch")
	importStatementCmd.Flags().StringVar(&flagPassword, "password", "", "Password for encrypted PDF statements")
	importStatementCmd.Flags().StringVar(&flagAccountID, "account", "", "Account id to reconcile against (default: resolve from the file)")

	importCmd.AddCommand(importSMSCmd)
	importCmd.AddCommand(importStatementCmd)
	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
