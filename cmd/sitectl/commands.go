package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sitecraft/backend/internal/services"
)

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Operate the site revision backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(open), newCreditsCmd(open), newProjectsCmd(open))
	return root
}

// withStore opens the store for the duration of one command.
func withStore(open openFunc, fn func(cmd *cobra.Command, s adminStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s, closeFn, err := open(cmd.Context())
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}
		return fn(cmd, s)
	}
}

func newMigrateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the queue and application schema",
		Args:  cobra.NoArgs,
		RunE: withStore(open, func(cmd *cobra.Command, s adminStore) error {
			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}),
	}
}

func newCreditsCmd(open openFunc) *cobra.Command {
	credits := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and top up user credits",
	}

	var (
		grantUser   string
		grantAmount int
	)
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to a user",
		Args:  cobra.NoArgs,
		RunE: withStore(open, func(cmd *cobra.Command, s adminStore) error {
			userID, err := uuid.Parse(grantUser)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			if grantAmount <= 0 {
				return fmt.Errorf("--amount must be positive")
			}
			balance, err := s.GrantCredits(cmd.Context(), userID, grantAmount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s, balance %d\n", grantAmount, userID, balance)
			return nil
		}),
	}
	grant.Flags().StringVar(&grantUser, "user", "", "user id")
	grant.Flags().IntVar(&grantAmount, "amount", 0, "credits to add")
	_ = grant.MarkFlagRequired("user")
	_ = grant.MarkFlagRequired("amount")

	var (
		showUser  string
		showLimit int
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a user's balance and recent ledger entries",
		Args:  cobra.NoArgs,
		RunE: withStore(open, func(cmd *cobra.Command, s adminStore) error {
			userID, err := uuid.Parse(showUser)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			balance, entries, err := s.Credits(cmd.Context(), userID, showLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "balance: %d\n", balance)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tTYPE\tAMOUNT\tBALANCE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\n", e.CreatedAt.Format(time.RFC3339), e.EntryType, e.Amount, e.BalanceAfter)
			}
			return tw.Flush()
		}),
	}
	show.Flags().StringVar(&showUser, "user", "", "user id")
	show.Flags().IntVar(&showLimit, "limit", 20, "ledger entries to print")
	_ = show.MarkFlagRequired("user")

	credits.AddCommand(grant, show)
	return credits
}

func newProjectsCmd(open openFunc) *cobra.Command {
	projects := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects outside the revision flow",
	}

	var user, name, file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create a project from an HTML file",
		Args:  cobra.NoArgs,
		RunE: withStore(open, func(cmd *cobra.Command, s adminStore) error {
			ownerID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			code, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			p, err := s.ImportProject(cmd.Context(), services.CreateProjectInput{
				OwnerID: ownerID,
				Name:    name,
				Code:    string(code),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported project %s (%q)\n", p.ID, p.Name)
			return nil
		}),
	}
	importCmd.Flags().StringVar(&user, "user", "", "owner user id")
	importCmd.Flags().StringVar(&name, "name", "", "project name")
	importCmd.Flags().StringVar(&file, "file", "", "HTML file with the initial code")
	for _, f := range []string{"user", "name", "file"} {
		_ = importCmd.MarkFlagRequired(f)
	}

	projects.AddCommand(importCmd)
	return projects
}
