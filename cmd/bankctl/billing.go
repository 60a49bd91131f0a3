package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Manage billing configurations",
}

var billingGetCmd = &cobra.Command{
	Use:   "get [accountKey]",
	Short: "Show the billing configuration for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/billing/"+args[0], nil)
	},
}

var billingChangeCmd = &cobra.Command{
	Use:   "change [request.json]",
	Short: "Request a billing configuration change from a JSON request file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var payload json.RawMessage = raw
		return call(http.MethodPost, "/billing", payload)
	},
}

func init() {
	billingCmd.AddCommand(billingGetCmd, billingChangeCmd)
	rootCmd.AddCommand(billingCmd)
}
