package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/persistence"
	"github.com/spec-kit/pet-registry/internal/repository"
	"github.com/spec-kit/pet-registry/internal/service"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account administration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newUsersCreateCommand())
	return cmd
}

func newUsersCreateCommand() *cobra.Command {
	var (
		username string
		email    string
		phone    string
		password string
		role     string
		staff    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with any role (veterinarian and branch accounts cannot self-register)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if !pg.Enabled() {
				return errors.New("POSTGRES_DSN is required to create users")
			}

			users := service.NewUserService(service.UserDependencies{
				Users:      repository.NewPostgresStore(pg.Pool).Users(),
				Passwords:  auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength, MinScore: cfg.Auth.PasswordMinScore},
				BcryptCost: cfg.Auth.BcryptCost,
			})
			user, err := users.CreateUser(ctx, service.CreateUserInput{
				RegisterInput: service.RegisterInput{Username: username, Email: email, Phone: phone, Password: password},
				Role:          domain.Role(role),
				IsStaff:       staff,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Unique username")
	cmd.Flags().StringVar(&email, "email", "", "Unique email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Optional phone number")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "customer, veterinarian, or branch")
	cmd.Flags().BoolVar(&staff, "staff", false, "Mark the account as staff")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
