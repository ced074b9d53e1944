package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"wabot/internal/audit"
	"wabot/internal/channel"
	"wabot/internal/chatapi"
	"wabot/internal/command"
	"wabot/internal/config"
	"wabot/internal/domain"
	"wabot/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "wabot",
		Short: "wabot: WhatsApp demo bot for the chat-api gateway",
		Long:  "wabot receives chat-api webhooks, matches simple text commands and replies through the gateway REST API.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal outside development.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file, .json or .yaml (default: ~/.wabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// newLogger builds the process logger from config: level plus an optional
// log file mirrored alongside stderr.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closer, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template and create the files directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Template()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			filesDir := config.ExpandPath(cfg.Server.FilesDir)
			if err := os.MkdirAll(filesDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "files", filesDir)
			fmt.Println("Set WABOT_TOKEN (or edit the config) and put tra.pdf, tra.jpg, tra.docx, tra.mp3 and tra.ogg into the files directory.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Start the webhook server",
		Long:    "Serves the chat-api webhook, the liveness page and the attachment files. Press Ctrl+C to stop.",
		RunE:    runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger = log
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal domain.Journal
	if cfg.Audit.Enabled {
		j, err := audit.NewSQLiteJournal(cfg.Audit.DBPath, logger)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		journal = j
		logger.Info("dispatch journal enabled", "db", cfg.Audit.DBPath)
	}

	if info, err := os.Stat(cfg.Server.FilesDir); err != nil || !info.IsDir() {
		logger.Warn("files directory missing, attachments will 404", "dir", cfg.Server.FilesDir)
	}

	client := chatapi.NewClient(chatapi.Config{
		APIURL:  cfg.Bot.APIURL,
		Token:   cfg.Bot.Token,
		Timeout: time.Duration(cfg.Bot.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	dispatcher := command.NewDispatcher(command.DispatcherConfig{
		Commands: command.Defaults(cfg.Bot.BotURL),
		Gateway:  client,
		Journal:  journal,
		Logger:   logger,
	})

	webhookCfg := channel.WebhookConfig{
		Addr:     cfg.Server.Addr(),
		Path:     cfg.Server.WebhookPath,
		FilesDir: cfg.Server.FilesDir,
		Handler:  dispatcher,
		Logger:   logger,
	}
	if cfg.Metrics.Enabled {
		webhookCfg.MetricsPath = cfg.Metrics.Endpoint
		webhookCfg.Metrics = metrics.Default.Handler()
	}

	logger.Info("wabot starting", "version", version, "config", cfgPath, "api", cfg.Bot.APIURL)
	if err := channel.NewWebhook(webhookCfg).Start(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are written to the config file and picked up on the next start.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. server.port 8080)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	var flat bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List all config values (token masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			if !flat {
				data, _ := json.MarshalIndent(sanitized, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			paths := config.ListPaths(sanitized)
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, paths[k])
			}
			return nil
		},
	}
	list.Flags().BoolVar(&flat, "flat", false, "print one dot-path per line")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit int
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently dispatched commands from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("journal disabled (set audit.enabled to true)")
			}
			j, err := audit.NewSQLiteJournal(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := context.Background()
			if prune > 0 {
				n, err := j.Prune(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Printf("Pruned %d entries older than %s\n", n, prune)
				return nil
			}

			entries, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No dispatches recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCHAT\tCOMMAND\tMETHOD\tSTATUS\tDURATION\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.ChatID, e.Command, e.Method,
					e.Status, e.Duration, e.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this age instead of listing (e.g. 720h)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wabot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wabot v%s\n", version)
		},
	}
}
