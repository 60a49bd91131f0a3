package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sapliy/baas-integration/internal/apiuser"
	"github.com/sapliy/baas-integration/pkg/database"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API credentials",
}

// apikeyCreateCmd writes straight to the database so keys can be
// minted before the service has any credentials at all.
var apikeyCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Mint an API key for a named consumer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := viper.GetString("database_dsn")
		if dsn == "" {
			return fmt.Errorf("database_dsn is not configured")
		}

		db, err := database.Connect(dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		user, key, err := apiuser.GenerateKey(args[0])
		if err != nil {
			return err
		}
		if err := apiuser.NewRepository(db).Create(context.Background(), user); err != nil {
			return err
		}

		fmt.Printf("user: %s\n", user.ID)
		fmt.Printf("key:  %s\n", key)
		fmt.Println("The key is shown once and cannot be recovered.")
		return nil
	},
}

var apikeyDisableCmd = &cobra.Command{
	Use:   "disable [userID]",
	Short: "Revoke an API user's credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := viper.GetString("database_dsn")
		if dsn == "" {
			return fmt.Errorf("database_dsn is not configured")
		}

		db, err := database.Connect(dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		return apiuser.NewRepository(db).Disable(context.Background(), args[0])
	},
}

func init() {
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyDisableCmd)
	rootCmd.AddCommand(apikeyCmd)
}
