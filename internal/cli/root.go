package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "kioskctl",
		Short: "CLI tool for the smart kiosk server",
		Long: `kioskctl is a CLI tool for operating a smart kiosk server.

It covers the JSON API (products, carts, registration, checkout, purchase
history, catalog administration) and can drive a kiosk session over the
WebSocket by streaming an image as camera frames.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client = NewClient(cfg.ServerURL, cfg.AdminKey)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: KIOSK_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminKey, "admin-key", cfg.AdminKey, "Admin key for admin commands (env: KIOSK_ADMIN_KEY)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newProductsCmd())
	rootCmd.AddCommand(newCartCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newCheckoutCmd())
	rootCmd.AddCommand(newTransactionsCmd())
	rootCmd.AddCommand(newReceiptCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newStreamCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
