package admin

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/password"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/spf13/cobra"
)

type options struct {
	driver string
	dsn    string
}

// env is what every subcommand works with.
type env struct {
	db    *sql.DB
	rm    repomanager.RepositoryManager
	store *services.CredentialStore
}

func (o *options) open(ctx context.Context) (*env, error) {
	dialect, err := dbx.ParseDialect(o.driver)
	if err != nil {
		return nil, err
	}
	db, err := dbx.Open(dialect, o.dsn)
	if err != nil {
		return nil, err
	}
	rm, err := repomanager.NewSQLRepositoryManager(dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	argon, err := password.NewArgon2(password.DefaultParams)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store := services.NewCredentialStore(db, rm, password.NewVerifier(argon, false))
	return &env{db: db, rm: rm, store: store}, nil
}

// withEnv opens the database for the duration of fn.
func (o *options) withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer e.db.Close()
	return fn(ctx, e)
}

// NewRootCmd builds the admin command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	o := &options{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage gateway users and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&o.driver, "driver", defaults.DatabaseDriver, "database driver (sqlite|pgx)")
	root.PersistentFlags().StringVar(&o.dsn, "dsn", defaults.DatabaseDSN, "database DSN")

	root.AddCommand(
		listCmd(o),
		addCmd(o),
		pointsCmd(o),
		cleanCmd(o),
		migrateCmd(o),
	)
	return root
}
