package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	_ "github.com/snowflakedb/gosnowflake"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/SurveyBot/internal/config"
	"github.com/JonMunkholm/SurveyBot/internal/llm"
	"github.com/JonMunkholm/SurveyBot/internal/schema"
	"github.com/JonMunkholm/SurveyBot/internal/tablecontext"
	"github.com/JonMunkholm/SurveyBot/internal/warehouse"
)

const connectTimeout = 30 * time.Second

type app struct {
	cfg       *config.Config
	columns   *schema.Introspector
	assembler *tablecontext.Assembler
	llm       llm.Provider
	log       *slog.Logger
}

func main() {
	_ = godotenv.Load() // loads .env if present, silently ignores if not

	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:           "surveybot",
		Short:         "Print the SurveyBot system prompt for the configured survey table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, verbose, func(a *app) error {
				prompt, err := a.systemPrompt(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), prompt)
				return err
			})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SURVEYBOT_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "columns",
			Short: "List the columns of the configured table as the warehouse reports them.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, verbose, func(a *app) error {
					return a.printColumns(cmd)
				})
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the system prompt, table context and SQL generation over HTTP.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, verbose, func(a *app) error {
					return a.serve()
				})
			},
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, connects to the warehouse and runs fn.
func withApp(ctx context.Context, configPath string, verbose bool, fn func(*app) error) error {
	log := newLogger(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	wh, err := warehouse.Open(connectCtx, cfg.Warehouse.Driver, cfg.Warehouse.DSN)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()
	log.Debug("connected to warehouse", "driver", cfg.Warehouse.Driver)

	return fn(newApp(cfg, wh, log))
}

func newApp(cfg *config.Config, wh warehouse.Querier, log *slog.Logger) *app {
	columns := schema.NewIntrospector(wh, cfg.PlaceholderFormat())
	a := &app{
		cfg:       cfg,
		columns:   columns,
		assembler: tablecontext.NewAssembler(columns, wh, tablecontext.NewCache(cfg.Cache.TTL), log),
		log:       log,
	}

	// Optional - only if configured
	if cfg.LLM.Enabled() {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			log.Warn("failed to initialize LLM", "error", err)
		} else {
			a.llm = provider
			log.Info("LLM provider initialized", "provider", provider.Name())
		}
	}
	return a
}

func (a *app) enrichment() *tablecontext.Enrichment {
	if a.cfg.Enrichment.Disabled {
		return nil
	}
	return &tablecontext.Enrichment{
		Query:  a.cfg.Enrichment.Query,
		Column: a.cfg.Enrichment.Column,
	}
}

func (a *app) tableContext(ctx context.Context) (*tablecontext.Block, error) {
	return a.assembler.BuildContext(ctx, a.cfg.QualifiedTableName(), a.cfg.Table.Description, a.enrichment())
}

func (a *app) systemPrompt(ctx context.Context) (string, error) {
	block, err := a.tableContext(ctx)
	if err != nil {
		return "", err
	}
	return llm.BuildSystemPrompt(block.Text), nil
}

func (a *app) printColumns(cmd *cobra.Command) error {
	table, err := schema.ParseTableIdentifier(a.cfg.QualifiedTableName())
	if err != nil {
		return err
	}
	columns, err := a.columns.FetchColumns(cmd.Context(), table.Upper())
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"#", "Column", "Type"})
	for i, col := range columns {
		tw.Append([]string{fmt.Sprintf("%d", i+1), col.Name, col.Type})
	}
	tw.SetCaption(true, table.String())
	tw.Render()
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
