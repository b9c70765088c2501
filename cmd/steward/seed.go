package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/namespace"
	"github.com/stewardhq/steward/internal/token"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an admin user with an API token",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	namespaceStore := namespace.NewStore(pool)
	tokenStore := token.NewStore(pool)

	// Check if seed has already run.
	if existing, err := namespaceStore.GetByID(ctx, namespace.TypeUser, "steward-admin"); err == nil {
		slog.Info("seed data already exists, skipping", "uid", existing.UID)
		return nil
	}

	admin, err := namespaceStore.Create(ctx, namespace.CreateInput{
		ID:    "steward-admin",
		Type:  namespace.TypeUser,
		Email: "admin@steward.local",
		Profile: namespace.Profile{
			DisplayName: "Steward Admin",
		},
		Role:     namespace.RoleManager,
		Password: "steward-admin-password",
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	slog.Info("created admin user", "id", admin.ID, "uid", admin.UID)

	ttl := int64(token.NonExpiringTTL)
	tok, err := tokenStore.Create(ctx, admin.UID.String(), token.CreateInput{
		ID:  "seed-token",
		TTL: &ttl,
	})
	if err != nil {
		return fmt.Errorf("creating seed token: %w", err)
	}

	fmt.Printf("\n=== Seed Data Created ===\n")
	fmt.Printf("User:       %s (%s)\n", admin.ID, admin.UID)
	fmt.Printf("Password:   steward-admin-password\n")
	fmt.Printf("API token:  %s\n", tok.AccessToken)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/v1/user\n", tok.AccessToken)
	fmt.Printf("  curl http://localhost:8080/v1/users/%s\n", admin.ID)

	return nil
}
