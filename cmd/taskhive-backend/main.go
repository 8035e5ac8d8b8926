package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/taskhive/taskhive-backend/backendservice"
	"github.com/taskhive/taskhive-backend/internal/config"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/store/postgres"
	"github.com/taskhive/taskhive-backend/internal/store/sqlite"
)

func main() {
	// optional .env for local development; missing file is fine
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "taskhive-backend",
		Short:        "Conversational task management backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), createUserCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return backendservice.Run()
		},
	}
}

func createUserCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a user and mint an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" || !strings.Contains(email, "@") {
				return fmt.Errorf("a valid --email is required")
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			user := &model.User{Email: email}
			if name != "" {
				user.DisplayName = &name
			}
			created, err := st.Users().Create(ctx, user)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			token := "th_" + strings.ReplaceAll(uuid.New().String(), "-", "")
			if _, err := st.Tokens().Create(ctx, &model.APIToken{
				Token:  token,
				UserID: created.ID,
				Name:   "default",
			}); err != nil {
				return fmt.Errorf("create token: %w", err)
			}

			cmd.Printf("user_id: %d\nemail: %s\ntoken: %s\n", created.ID, created.Email, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new user")
	cmd.Flags().StringVar(&name, "name", "", "display name (optional)")
	return cmd
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.New(cfg.PostgresDSN)
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
