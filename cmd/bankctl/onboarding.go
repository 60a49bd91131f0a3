package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var onboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Manage KYC onboarding analyses",
}

var onboardingSubmitCmd = &cobra.Command{
	Use:   "submit [request.json]",
	Short: "Submit a customer for KYC analysis from a JSON request file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var payload json.RawMessage = raw
		return call(http.MethodPost, "/onboarding", payload)
	},
}

var onboardingGetCmd = &cobra.Command{
	Use:   "get [document]",
	Short: "Show the latest analysis for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodGet, "/onboarding/"+args[0], nil)
	},
}

var onboardingRefreshCmd = &cobra.Command{
	Use:   "refresh [document]",
	Short: "Re-check a pending analysis against the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodPost, "/onboarding/"+args[0]+"/refresh", nil)
	},
}

func init() {
	onboardingCmd.AddCommand(onboardingSubmitCmd, onboardingGetCmd, onboardingRefreshCmd)
	rootCmd.AddCommand(onboardingCmd)
}
