package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"credentialing/api/internal/authpw"
)

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create or replace a sign-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := authpw.NewService(st).CreateUser(cmd.Context(), authpw.CreateUserRequest{
			Email:       userEmail,
			Password:    userPassword,
			DisplayName: userName,
			Role:        userRole,
		})
		if err != nil {
			return err
		}
		fmt.Printf("user %s (%s) ready with role %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	userCmd.Flags().StringVar(&userEmail, "email", "", "Account email")
	userCmd.Flags().StringVar(&userPassword, "password", "", "Account password (at least 8 characters)")
	userCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCmd.Flags().StringVar(&userRole, "role", "editor", "viewer, editor or admin")
	_ = userCmd.MarkFlagRequired("email")
	_ = userCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(userCmd)
}
