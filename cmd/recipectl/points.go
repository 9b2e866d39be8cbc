package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var openGrant int64

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Inspect and adjust user point balances",
}

var pointsBalanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Print a user's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		bal, err := a.Ledger.GetBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], bal)
		return nil
	},
}

var pointsOpenCmd = &cobra.Command{
	Use:   "open <user-id>",
	Short: "Create the points account for a user created outside this service",
	Example: `  recipectl points open 6f1c0c1e-5a8e-4b8a-9f0e-0d6c2f1d9b11
  recipectl points open 6f1c0c1e-5a8e-4b8a-9f0e-0d6c2f1d9b11 --grant 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		grant := a.Cfg.Points.StartingGrant
		if cmd.Flags().Changed("grant") {
			grant = openGrant
		}
		acc, err := a.Ledger.Open(cmd.Context(), args[0], grant)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "opened %s with %d points\n", acc.UserID, acc.Points)
		return nil
	},
}

var pointsGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Add points to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		bal, err := a.Ledger.Reward(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], bal)
		return nil
	},
}

func init() {
	pointsOpenCmd.Flags().Int64Var(&openGrant, "grant", 0, "initial balance (default: points.starting_grant)")
	pointsCmd.AddCommand(pointsBalanceCmd, pointsOpenCmd, pointsGrantCmd)
	rootCmd.AddCommand(pointsCmd)
}
