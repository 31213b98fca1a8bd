package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/coregx/webdb"
	"github.com/coregx/webdb/internal/config"
	"github.com/coregx/webdb/internal/logger"
)

const cliVersion = "0.1.0-dev"

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	command := newRootCommand()
	parsedArgs := []string{}
	if len(args) > 1 {
		parsedArgs = args[1:]
	}
	command.SetArgs(parsedArgs)
	return command.Execute()
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	profile    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	command := &cobra.Command{
		Use:           "webdb",
		Short:         "query and edit MySQL, PostgreSQL and SQLite databases by connection profile",
		Version:       cliVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := command.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to the config file (default: "+config.DefaultFile+" searched upwards)")
	flags.StringVarP(&g.profile, "profile", "p", "", "connection profile (default: the configured default)")
	flags.StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	command.AddCommand(
		newProfilesCommand(g),
		newFieldsCommand(g),
		newQueryCommand(g),
		newExecCommand(g),
		newCountCommand(g),
		newExportCommand(g),
		newImportCommand(g),
	)
	return command
}

func (g *globals) load() (*config.File, error) {
	file, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return file, nil
}

// connect opens the selected profile. Statement logs go to logs.
func (g *globals) connect(ctx context.Context, logs io.Writer) (*webdb.DB, error) {
	file, err := g.load()
	if err != nil {
		return nil, err
	}
	profile, err := file.Profile(g.profile)
	if err != nil {
		return nil, err
	}
	params, err := profile.ConnParams()
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", g.profile, err)
	}

	level := file.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	if level == "" {
		level = "warn"
	}
	l, err := logger.New(logs, level, file.Log.Format)
	if err != nil {
		return nil, err
	}

	opts := append(profile.DBOptions(), webdb.WithLogger(l))
	if len(file.Log.SensitiveFields) > 0 {
		opts = append(opts, webdb.WithSensitiveFields(file.Log.SensitiveFields...))
	}
	return webdb.Open(ctx, params, opts...)
}

// withDB connects, runs fn and closes the connection.
func (g *globals) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *webdb.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := g.connect(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}
