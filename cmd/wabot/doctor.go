package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"wabot/internal/command"
	"wabot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	var skipNetwork bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your wabot installation",
		Long: `Verifies that the configuration, attachment files, journal database,
listen port and gateway URL are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("wabot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, failed, warned := 0, 0, 0

			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'wabot init' to create a configuration.\n")
				return fmt.Errorf("config file missing")
			}
			printPass("Config file", cfgPath)
			passed++

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// Attachment files
			missing := missingAttachments(cfg.Server.FilesDir)
			switch {
			case missing == nil:
				printPass("Attachments", cfg.Server.FilesDir)
				passed++
			case len(missing) == len(command.AttachmentFiles()):
				printWarn("Attachments", fmt.Sprintf("no attachment files in %s", cfg.Server.FilesDir))
				warned++
			default:
				printWarn("Attachments", fmt.Sprintf("missing %v", missing))
				warned++
			}

			// Journal database
			if cfg.Audit.Enabled {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Journal", err.Error())
					failed++
				} else {
					printPass("Journal", cfg.Audit.DBPath)
					passed++
				}
			}

			// Listen port
			if err := checkPort(cfg.Server.Addr()); err != nil {
				printWarn("Listen port", fmt.Sprintf("%s may be in use: %v", cfg.Server.Addr(), err))
				warned++
			} else {
				printPass("Listen port", cfg.Server.Addr()+" available")
				passed++
			}

			// Gateway reachability (no token is sent)
			if !skipNetwork {
				if err := checkReachable(cfg.Bot.APIURL); err != nil {
					printWarn("Gateway", fmt.Sprintf("%s unreachable: %v", cfg.Bot.APIURL, err))
					warned++
				} else {
					printPass("Gateway", cfg.Bot.APIURL)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned == 0 {
				fmt.Printf("\nAll checks passed! wabot is ready to run.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipNetwork, "offline", false, "skip the gateway reachability check")
	return cmd
}

func missingAttachments(dir string) []string {
	var missing []string
	for _, name := range command.AttachmentFiles() {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func checkReachable(rawURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Head(rawURL)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
