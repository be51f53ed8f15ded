package admin

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/spf13/cobra"
)

func listCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(cmd, func(ctx context.Context, e *env) error {
				users, err := e.store.ListUsers(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tACCOUNT\tEMAIL\tPOINTS\tLAST LOGIN")
				for _, u := range users {
					last := "never"
					if !u.LastLogin.IsZero() {
						last = u.LastLogin.UTC().Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", u.ID, u.UserName, u.Account, u.Email, u.Points, last)
				}
				return tw.Flush()
			})
		},
	}
}

func addCmd(o *options) *cobra.Command {
	var (
		userName string
		account  string
		pw       string
		email    string
		points   int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long:  `Create a user. Without --password the password is read from the terminal.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pw == "" {
				var err error
				if pw, err = promptPassword(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			if userName == "" {
				userName = account
			}

			return o.withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := e.store.CreateUser(ctx, userName, account, pw, email, points)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", account, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userName, "username", "", "display name (defaults to the account)")
	cmd.Flags().StringVar(&account, "account", "", "login account")
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().Int64Var(&points, "points", 0, "initial points")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func pointsCmd(o *options) *cobra.Command {
	var (
		userID int64
		delta  int64
	)

	cmd := &cobra.Command{
		Use:   "points",
		Short: "Add to or subtract from a user's points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(cmd, func(ctx context.Context, e *env) error {
				balance, err := e.store.AdjustPoints(ctx, userID, delta)
				if err != nil {
					var ie *services.InsufficientError
					if errors.As(err, &ie) {
						return fmt.Errorf("user %d has only %d points", userID, ie.Balance)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d now has %d points\n", userID, balance)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	cmd.Flags().Int64Var(&delta, "delta", 0, "points to add (negative to subtract)")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("delta")

	return cmd
}

func cleanCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(cmd, func(ctx context.Context, e *env) error {
				n, err := e.store.SweepExpiredSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
				return nil
			})
		},
	}
}

func migrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(cmd, func(ctx context.Context, e *env) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}
