package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/finboard/internal/config"
	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/storage"
)

// envFlags maps persistent flags onto the environment variables read by
// config.Load. Flags and FINBOARD_* variables win over the plain variables.
var envFlags = map[string]string{
	"storage-driver": "STORAGE_DRIVER",
	"storage-path":   "STORAGE_PATH",
	"database-url":   "DATABASE_URL",
	"log-level":      "LOG_LEVEL",
	"currency-cols":  "DISPLAY_CURRENCY_COLUMNS",
	"date-cols":      "DISPLAY_DATE_COLUMNS",
}

// queryFlags are shared by show and export.
type queryFlags struct {
	search  string
	sort    string
	desc    bool
	filters []string
}

func (q *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&q.search, "search", "s", "", "Keep rows where any value contains this text (case-insensitive)")
	fs.StringVar(&q.sort, "sort", "", "Sort by this column")
	fs.BoolVar(&q.desc, "desc", false, "Sort descending")
	fs.StringArrayVarP(&q.filters, "filter", "f", nil, "Keep rows where column=value (repeatable, values of one column are OR-ed)")
}

// state converts the flags into a query state.
func (q *queryFlags) state() (core.QueryState, error) {
	state := core.QueryState{Search: q.search}
	if q.sort != "" {
		state.Sort = core.SortSpec{Key: q.sort, Direction: core.SortAsc}
		if q.desc {
			state.Sort.Direction = core.SortDesc
		}
	}
	for _, f := range q.filters {
		col, val, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(col) == "" {
			return core.QueryState{}, fmt.Errorf("invalid filter %q, expected column=value", f)
		}
		col = strings.TrimSpace(col)
		if !state.Filters[col].Contains(val) {
			state = state.ToggleFilterValue(col, val)
		}
	}
	return state, nil
}

// app holds what every command needs once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("FINBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v, out: os.Stdout}
}

// getenv resolves a config variable: flag or FINBOARD_* first, then the
// process environment.
func (a *app) getenv(key string) string {
	for flag, env := range envFlags {
		if env == key {
			if s := a.v.GetString(flag); s != "" {
				return s
			}
		}
	}
	return os.Getenv(key)
}

// setup loads .env, the optional config file and the configuration, then
// installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg, err := config.LoadWith(a.getenv)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	a.logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "finboard",
		Level:           level,
	})
	slog.SetDefault(slog.New(a.logger))
	return nil
}

// open connects to storage and restores the saved dashboard.
func (a *app) open(ctx context.Context) (*core.Service, func(), error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver:      a.cfg.Storage.Driver,
		Path:        a.cfg.Storage.Path,
		DatabaseURL: a.cfg.Storage.DatabaseURL,
		MaxConns:    a.cfg.Storage.MaxConns,
	})
	if err != nil {
		return nil, nil, err
	}
	svc := core.NewService(store, core.Options{
		MaxSourceSize: a.cfg.Upload.MaxFileSize,
		Timeout:       a.cfg.Upload.Timeout,
	})
	if _, err := svc.Restore(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, func() { store.Close() }, nil
}

func (a *app) print(md string) error {
	out, err := renderMarkdown(md, a.v.GetString("style"), a.v.GetInt("width"))
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, out)
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "finboard",
		Short:         "Personal finance dashboard from CSV exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (yaml, toml or json)")
	pf.String("storage-driver", "", "Storage driver: sqlite, postgres or memory")
	pf.String("storage-path", "", "SQLite database file")
	pf.String("database-url", "", "PostgreSQL connection string")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("currency-cols", "", "Comma-separated columns shown as amounts")
	pf.String("date-cols", "", "Comma-separated columns shown as dates")
	pf.String("style", "auto", "Output style: auto, dark, light, notty, ascii")
	pf.Int("width", 100, "Wrap output at this width")

	root.AddCommand(newImportCmd(a), newShowCmd(a), newValuesCmd(a), newExportCmd(a))
	return root
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the dashboard with the records of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := core.ContextWithTrigger(cmd.Context(), core.TriggerCLI)
			svc, closeFn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.ImportFile(ctx, args[0])
			if err != nil {
				return notificationError{core.Notify(err), err}
			}
			n := core.Success(res)
			return a.print(fmt.Sprintf("**%s** %s\n\n`%s`", n.Title, n.Description, res.ImportID))
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the dashboard table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := q.state()
			if err != nil {
				return err
			}
			svc, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if _, ok := svc.Snapshot(); !ok {
				return a.print("_No data yet. Run `finboard import FILE` first._")
			}
			res := svc.Query(state)
			formatter := core.NewCellFormatter(a.cfg.Display.CurrencyColumns, a.cfg.Display.DateColumns)
			return a.print(markdownTable(formatter.Apply(res.Collection)) +
				fmt.Sprintf("\nShowing %d of %d rows\n", res.Shown, res.Total))
		},
	}
	q.register(cmd.Flags())
	return cmd
}

func newValuesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "values <column>",
		Short: "List the distinct values of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			coll, ok := svc.Store().Current()
			if !ok || !coll.Schema.Has(args[0]) {
				return fmt.Errorf("column %q: %w", args[0], core.ErrNotFound)
			}
			return a.print(markdownList(core.UniqueValues(coll, args[0])))
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current view as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := q.state()
			if err != nil {
				return err
			}
			svc, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			_, err = io.WriteString(a.out, core.EncodeCSV(svc.Query(state).Collection))
			return err
		},
	}
	q.register(cmd.Flags())
	return cmd
}

// notificationError carries the user-facing message of a failed import.
type notificationError struct {
	n   core.Notification
	err error
}

func (e notificationError) Error() string { return core.FormatNotification(e.n) }
func (e notificationError) Unwrap() error { return e.err }

func main() {
	a := newApp()
	if err := newRootCmd(a).Execute(); err != nil {
		var ne notificationError
		if errors.As(err, &ne) && a.logger != nil {
			a.logger.Debug("import failed", "error", ne.err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
