package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/promptguard/internal/auth"
	"github.com/valinor-ai/promptguard/internal/platform/config"
)

var (
	tokenUser       string
	tokenEmail      string
	tokenName       string
	tokenDepartment string
	tokenRoles      []string
	tokenTTL        time.Duration
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with the configured key",
		Long: `Signs an access token with auth.jwt.signingkey
(PROMPTGUARD_AUTH_JWT_SIGNINGKEY) for calling a server that has auth enabled.`,
		Example: `  promptguard-cli token --user kim --department 전력계통처 --ttl 8h`,
		Args:    cobra.NoArgs,
		RunE:    runToken,
	}
	cmd.Flags().StringVar(&tokenUser, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	cmd.Flags().StringVar(&tokenName, "name", "", "display name claim")
	cmd.Flags().StringVar(&tokenDepartment, "department", "", "department claim")
	cmd.Flags().StringSliceVar(&tokenRoles, "roles", nil, "comma-separated roles")
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.jwt.expiryhours)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWT.SigningKey == "" {
		return errors.New("auth.jwt.signingkey is not set")
	}
	if tokenTTL < 0 {
		return errors.New("ttl must be positive")
	}

	svc := auth.NewTokenService(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.ExpiryHours)
	identity := &auth.Identity{
		UserID:      tokenUser,
		Email:       tokenEmail,
		DisplayName: tokenName,
		Department:  tokenDepartment,
		Roles:       tokenRoles,
	}

	var token string
	if tokenTTL > 0 {
		token, err = svc.CreateTokenWithTTL(identity, tokenTTL)
	} else {
		token, err = svc.CreateAccessToken(identity)
	}
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
