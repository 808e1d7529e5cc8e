package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Run the assistant stage once and print the answer",
	Long: `Run the assistant stage once and print the answer.

With --multi the query goes to the general stage, which delegates to the
math, weather and research agents.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}

		ask := app.Ask
		if multi, _ := cmd.Flags().GetBool("multi"); multi {
			ask = app.AskGeneral
		}
		res, err := ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintln(out, res.Text)
		if res.Truncated {
			fmt.Fprintf(out, "(stopped after %d iterations)\n", res.Iterations)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("json", false, "print the full stage result as JSON")
	askCmd.Flags().Bool("multi", false, "delegate through the general stage and its specialist agents")
}
