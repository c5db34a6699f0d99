package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/smartkiosk/internal/services/auth"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Product catalog administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the server's catalog snapshot from storage (requires --admin-key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AdminKey == "" {
				return fmt.Errorf("--admin-key is required")
			}

			var result ReloadResult
			if err := client.Post("/api/v1/admin/catalog/reload", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	})

	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin key utilities",
	}

	cmd.AddCommand(newAdminGenerateKeyCmd())
	cmd.AddCommand(newAdminHashKeyCmd())

	return cmd
}

func newAdminGenerateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key",
		Short: "Generate a random admin key and its ADMIN_KEY_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := auth.GenerateKey()
			hash, err := auth.HashKey(key, bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if cfg.Output == "json" {
				out.Print(map[string]string{"key": key, "hash": hash})
				return nil
			}
			out.PrintMessage("Key:  " + key)
			out.PrintMessage("Hash: " + hash)
			return nil
		},
	}
}

func newAdminHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the ADMIN_KEY_HASH for a key (reads stdin if no argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			hash, err := auth.HashKey(key, bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage(hash)
			return nil
		},
	}
}

func keyArg(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
