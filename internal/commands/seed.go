package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/kasa/internal/config"
)

func newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write or apply the seed file with the owner, plans and settings",
	}

	cmd.AddCommand(newSeedInitCommand(), newSeedApplyCommand())

	return cmd
}

func newSeedInitCommand() *cobra.Command {
	var email string
	var force bool

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a seed file with the default plans and lifecycle events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if err := config.SaveSeed(path, config.DefaultSeed(email)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newSeedApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <path>",
		Short: "Load a seed file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.seed, err = config.LoadSeed(args[0]); err != nil {
				return err
			}
			a.cfg.SeedFile = args[0]
			res, err := a.service(nil).ApplySeed(cmd.Context(), a.seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "owner #%d (%s): %d plans created, %d kept\n",
				res.Owner.ID, res.Owner.Email, res.PlansCreated, res.PlansKept)
			return nil
		},
	}
}
