package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/entities"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// opening the store applies pending migrations
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", a.cfg.Database.Path)
			return nil
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("CIMS_ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or CIMS_ADMIN_PASSWORD) are required")
			}
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			user, created, err := a.svc.Auth.EnsureAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists (role %s)\n", user.Email, user.Role)
				return nil
			}
			a.logger.Info("administrator created", zap.String("user_id", user.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk load data from CSV files",
	}
	cmd.AddCommand(newImportMaterialsCommand(opts))
	return cmd
}

func newImportMaterialsCommand(opts *rootOptions) *cobra.Command {
	var actorEmail string
	return withActorFlag(&cobra.Command{
		Use:   "materials <file.csv|->",
		Short: "Import materials from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			var actor *entities.User
			if actorEmail != "" {
				actor, err = a.store.Repositories().Users.GetUserByEmail(cmd.Context(), actorEmail)
				if err != nil {
					return fmt.Errorf("failed to find user %s: %w", actorEmail, err)
				}
			}

			result, err := a.svc.Materials.Import(cmd.Context(), actor, in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d rows were rejected", result.Failed, result.Failed+result.Imported)
			}
			return nil
		},
	}, &actorEmail)
}

func withActorFlag(cmd *cobra.Command, actorEmail *string) *cobra.Command {
	cmd.Flags().StringVar(actorEmail, "as", "", "email of the user recorded as creator")
	return cmd
}
