// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/internal/config"
	"github.com/canonical/surrealq/transport/sqldb"
	"github.com/canonical/surrealq/transport/ws"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Binds    []string
	BindFile string
	File     string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [program]",
		Short: "Run a program and print its results",
		Long: `Run a program and print the result of each statement as JSON.

The program is taken from the arguments, or from --file. A file name of
"-" reads the program from standard input. Values given with --bind that
look like record ids, such as person:tobie, are bound as record ids.

Example:
  surrealq query 'SELECT * FROM $who' --bind who=person:tobie
  surrealq query --file report.surql --bind-file params.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Binds, "bind", "b", nil, "bind a parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.BindFile, "bind-file", "", "YAML file holding a map of parameters")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the program from a file")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, args []string) error {
	program, err := readProgram(cmd, opts, args)
	if err != nil {
		return err
	}
	bindings, err := readBindings(opts)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	logger := opts.logger(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	conn, closeConn, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := surrealq.NewDB(conn).Query(program).Bind(bindings...).Run(ctx)
	if err != nil {
		return err
	}
	logger.Debug().Int("results", resp.Len()).Msg("query done")

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return resp.Err()
}

func readProgram(cmd *cobra.Command, opts *QueryOptions, args []string) (string, error) {
	switch {
	case opts.File != "" && len(args) > 0:
		return "", fmt.Errorf("cannot use --file with a program argument")
	case opts.File == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("cannot read program: %w", err)
		}
		return string(data), nil
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return "", fmt.Errorf("cannot read program: %w", err)
		}
		return string(data), nil
	case len(args) == 0:
		return "", fmt.Errorf("no program given")
	}
	return strings.Join(args, " "), nil
}

func readBindings(opts *QueryOptions) ([]surrealq.Binding, error) {
	var bindings []surrealq.Binding
	if opts.BindFile != "" {
		data, err := os.ReadFile(opts.BindFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read bind file: %w", err)
		}
		var params map[string]any
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("cannot parse bind file %q: %w", opts.BindFile, err)
		}
		bindings = append(bindings, surrealq.Fields(params))
	}
	// Flags come last so they override the bind file.
	for _, b := range opts.Binds {
		name, value, ok := strings.Cut(b, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid binding %q: need name=value", b)
		}
		bindings = append(bindings, surrealq.NamedString(name, value))
	}
	return bindings, nil
}

// connect opens the connection selected by cfg. The returned function
// releases it.
func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (surrealq.Conn, func(), error) {
	logger = logger.With().Str("driver", cfg.Driver).Logger()
	switch cfg.Driver {
	case config.DriverWS:
		conn, err := ws.Dial(ctx, cfg.URL, ws.WithLogger(logger), ws.WithEncoding(ws.Encoding(cfg.Encoding)))
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("cannot use namespace %q database %q: %w", cfg.Namespace, cfg.Database, err)
		}
		return conn, func() { conn.Close() }, nil
	case config.DriverSQLite, config.DriverDqlite:
		var db *sql.DB
		var err error
		if cfg.Driver == config.DriverSQLite {
			db, err = sql.Open("sqlite3", cfg.DSN)
		} else {
			db, err = sqldb.OpenDqlite(ctx, cfg.DSN, cfg.Nodes...)
		}
		if err != nil {
			return nil, nil, err
		}
		// A single connection keeps one view of in-memory databases.
		db.SetMaxOpenConns(1)
		conn := sqldb.New(db, sqldb.WithLogger(logger))
		return conn, func() {
			conn.Close()
			db.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}
