package main

import (
	"context"
	"fmt"
	"time"

	"reelgate/internal/core/services"

	"github.com/spf13/cobra"
)

func newPromoteCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to a registered user",
		Long: `Promote a user to admin in the configured Redis store. Running
servers pick up the change through the change bus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			auth := services.NewAuthService(st.cfg.Auth.JWTSecret, st.cfg.Auth.AccessTokenTTL, st.cfg.Auth.RefreshTokenTTL)
			users := services.NewUserService(st.repos.Users, auth, services.UserServiceConfig{
				BcryptCost: st.cfg.Auth.BcryptCost,
			}, nil, st.log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			user, err := users.Promote(ctx, username)
			if err != nil {
				return fmt.Errorf("promote %s: %w", username, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now an admin\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username to promote")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
