package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var pixCmd = &cobra.Command{
	Use:   "pix",
	Short: "Manage Pix keys and limits",
}

var pixKeyCreateCmd = &cobra.Command{
	Use:   "create-key [document] [type]",
	Short: "Register a Pix key (evp, cpf, email or phone_number)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]string{
			"document": args[0],
			"type":     args[1],
		}
		return call(http.MethodPost, "/pix/keys", payload)
	},
}

var pixKeyGetCmd = &cobra.Command{
	Use:   "get-key [document] [type]",
	Short: "Show the Pix key of a given type for a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/pix/keys/"+args[0]+"/"+args[1], nil)
	},
}

var pixLimitsGetCmd = &cobra.Command{
	Use:   "limits [document]",
	Short: "Show the current Pix limits for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/pix/limits/"+args[0], nil)
	},
}

var pixLimitsUpdateCmd = &cobra.Command{
	Use:   "update-limits [document] [request.json]",
	Short: "Request a Pix limits change from a JSON request file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var payload json.RawMessage = raw
		return call(http.MethodPut, "/pix/limits/"+args[0], payload)
	},
}

var pixLimitStatuses []string

var pixLimitRequestsCmd = &cobra.Command{
	Use:   "limit-requests [document]",
	Short: "List Pix limit change requests for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		for _, status := range pixLimitStatuses {
			query.Add("status", status)
		}
		path := "/pix/limits/" + args[0] + "/requests"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
		return call(http.MethodGet, path, nil)
	},
}

func init() {
	pixLimitRequestsCmd.Flags().StringSliceVar(&pixLimitStatuses, "status", nil, "filter by request status (repeatable)")
	pixCmd.AddCommand(pixKeyCreateCmd, pixKeyGetCmd, pixLimitsGetCmd, pixLimitsUpdateCmd, pixLimitRequestsCmd)
	rootCmd.AddCommand(pixCmd)
}
