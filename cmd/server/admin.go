package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"skillexchange/internal/handler"
	"skillexchange/internal/infrastructure/database"
	"skillexchange/internal/job"
	"skillexchange/internal/model"
	"skillexchange/internal/repository"
	"skillexchange/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(tokenCmd)

	seedCmd.Flags().Int("users", 3, "Number of users to create")
	seedCmd.Flags().Int64("balance", 100, "Opening SkillCoins for each user")
	seedCmd.Flags().String("prefix", "user", "Username prefix")

	tokenCmd.Flags().Int64("user", 0, "User id placed in the token subject")
	tokenCmd.Flags().String("role", "", "Role claim, e.g. admin")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := database.Migrate(a.db); err != nil {
			return err
		}
		log.Printf("[Migrate] schema up to date driver=%s", a.cfg.Database.Driver)
		return nil
	},
}

// Opening balances go through the ledger so the audit sees a matching history.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo users with an opening balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		users, _ := cmd.Flags().GetInt("users")
		balance, _ := cmd.Flags().GetInt64("balance")
		prefix, _ := cmd.Flags().GetString("prefix")
		if users <= 0 {
			return fmt.Errorf("--users must be positive")
		}
		if balance < 0 {
			return fmt.Errorf("--balance cannot be negative")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := database.Migrate(a.db); err != nil {
			return err
		}

		userRepo := repository.NewUserRepository(a.db)
		for i := 1; i <= users; i++ {
			user := &model.User{Username: fmt.Sprintf("%s%03d", prefix, i)}
			if err := userRepo.Create(ctx, nil, user); err != nil {
				return fmt.Errorf("create %s: %w", user.Username, err)
			}
			if balance > 0 {
				if _, err := a.ledger.Adjust(ctx, &service.AdjustRequest{
					UserID:      user.ID,
					Adjustment:  balance,
					Description: "Opening balance",
				}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%d\n", user.ID, user.Username, balance)
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare every balance with its transaction history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		drifts, err := job.NewLedgerAuditJob(a.db, a.cfg.Business.AuditInterval).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if len(drifts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "ledger consistent")
			return nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(drifts); err != nil {
			return err
		}
		return fmt.Errorf("%d users have drifted balances", len(drifts))
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if userID <= 0 {
			return fmt.Errorf("--user must be a positive user id")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if a.cfg.Auth.Secret == "" {
			return fmt.Errorf("auth.secret is not configured")
		}

		token, err := handler.NewAuthenticator(&a.cfg.Auth).IssueToken(userID, role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
