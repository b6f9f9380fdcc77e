/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esurat/apiserver/config"
	"github.com/esurat/apiserver/internal/db"
	"github.com/esurat/apiserver/internal/logger"
	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var newUser services.NewUserInput

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.New(cfg.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		activity := services.NewActivityService(store.NewActivityRepository(conn), log)
		auth := services.NewAuthService(store.NewUserRepository(conn), store.NewTokenRepository(conn), activity, cfg.JWT.Secret, cfg.JWT.TTL, log)
		user, err := auth.CreateUser(cmd.Context(), newUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", user.Username, user.ID, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	f := userCreateCmd.Flags()
	f.StringVar(&newUser.Username, "username", "", "login name")
	f.StringVar(&newUser.Password, "password", "", "initial password")
	f.StringVar(&newUser.NamaLengkap, "name", "", "full name")
	f.StringVar(&newUser.Email, "email", "", "email address")
	f.StringVar(&newUser.Jabatan, "jabatan", "", "position")
	f.StringVar(&newUser.Role, "role", "user", "user, admin or pimpinan")
	f.StringVar(&newUser.Instansi, "instansi", "", "institution code")
	f.StringVar(&newUser.KodeUser, "kode-user", "", "unique user code, e.g. YS-01-PMP-001")
	f.StringVar(&newUser.Level, "level", "", "display level (defaults to the role)")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")
}
