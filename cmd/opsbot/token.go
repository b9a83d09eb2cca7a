package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oasis-community/opsbot/internal/auth"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/domain"
)

func newTokenCommand() *cobra.Command {
	var (
		userID string
		name   string
		staff  bool
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			subject := domain.SubjectTypeUser
			if staff {
				subject = domain.SubjectTypeStaff
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expires, err := tokens.GenerateToken(userID, subject, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s user=%s expires=%s\n", subject, userID, expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "platform user ID the token acts as")
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	cmd.Flags().BoolVar(&staff, "staff", false, "mint a staff token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
