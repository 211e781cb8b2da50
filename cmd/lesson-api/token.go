package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/noah-isme/lesson-registration-api/internal/dto"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/service"
)

func newTokenCommand() *cobra.Command {
	var req service.IssueTokenRequest
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokens := service.NewTokenService(service.TokenConfig{
				Secret: cfg.JWT.Secret,
				Expiry: cfg.JWT.Expiration,
				Issuer: "lesson-registration-api",
			}, nil)
			req.Role = models.UserRole(role)
			signed, expiresAt, err := tokens.Issue(req)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(dto.TokenResponse{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "User or instructor id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "SUPERADMIN, ADMIN, INSTRUCTOR or PARENT")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email recorded as the actor of writes")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
