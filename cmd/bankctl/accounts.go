package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage bank accounts",
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create [request.json]",
	Short: "Open a bank account from a JSON request file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var payload json.RawMessage = raw
		return call(http.MethodPost, "/accounts", payload)
	},
}

var accountsGetCmd = &cobra.Command{
	Use:   "get [document]",
	Short: "Show the account for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/accounts/"+args[0], nil)
	},
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh [document]",
	Short: "Re-check a pending account against the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodPost, "/accounts/"+args[0]+"/refresh", nil)
	},
}

func init() {
	accountsCmd.AddCommand(accountsCreateCmd, accountsGetCmd, accountsRefreshCmd)
	rootCmd.AddCommand(accountsCmd)
}
