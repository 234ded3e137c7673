package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"skillexchange/pkg/walletclient"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	userID    int64
)

var rootCmd = &cobra.Command{
	Use:           "walletctl",
	Short:         "Inspect and move SkillCoins through a running SkillExchange server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("WALLETCTL_SERVER", "http://localhost:8080/api/v1"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("WALLETCTL_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 0, "Acting user id")
	_ = rootCmd.MarkPersistentFlagRequired("user")

	rootCmd.AddCommand(showCmd, donateCmd, creditCmd)

	donateCmd.Flags().Int64("to", 0, "Receiving user id, 0 for the community account")
	donateCmd.Flags().Int64("amount", 0, "SkillCoins to donate")
	donateCmd.Flags().String("message", "", "Note shown to the receiver")

	creditCmd.Flags().Int64("amount", 0, "SkillCoins bought")
	creditCmd.Flags().String("reference", "", "Payment provider reference")
	creditCmd.Flags().String("transaction-id", "", "Payment provider transaction id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newStore() *walletclient.Store {
	var opts []walletclient.Option
	if token != "" {
		opts = append(opts, walletclient.WithToken(token))
	}
	return walletclient.NewStore(walletclient.New(serverURL, opts...), userID)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the balance and transaction history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := newStore()
		if err := store.Refresh(cmd.Context()); err != nil {
			return err
		}
		view, _ := store.Snapshot()
		printWallet(cmd, view)
		return nil
	},
}

var donateCmd = &cobra.Command{
	Use:   "donate",
	Short: "Give SkillCoins to another user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		to, _ := cmd.Flags().GetInt64("to")
		amount, _ := cmd.Flags().GetInt64("amount")
		message, _ := cmd.Flags().GetString("message")

		var receiver *int64
		if to != 0 {
			receiver = &to
		}

		store := newStore()
		result, err := store.Donate(cmd.Context(), receiver, amount, message)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", result.Message, result.Transaction.TransactionNo)
		if view, ok := store.Snapshot(); ok {
			printWallet(cmd, view)
		}
		return store.Err()
	},
}

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Credit SkillCoins from a completed provider payment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		amount, _ := cmd.Flags().GetInt64("amount")
		reference, _ := cmd.Flags().GetString("reference")
		transactionID, _ := cmd.Flags().GetString("transaction-id")

		store := newStore()
		result, err := store.Credit(cmd.Context(), amount, reference, transactionID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return store.Err()
	},
}

func printWallet(cmd *cobra.Command, view walletclient.WalletView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d): %d SkillCoins\n\n", view.Wallet.Username, view.Wallet.UserID, view.Wallet.Skillcoins)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTYPE\tDIRECTION\tAMOUNT\tDESCRIPTION")
	for _, t := range view.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			t.CreatedAt.Format("2006-01-02 15:04"), t.TransactionType, t.Direction, t.SkillcoinsTransferred, t.Description)
	}
	_ = w.Flush()
}
