package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ProductList

			if err := client.Get("/api/v1/products", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newCartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cart <session>",
		Short: "Show the cart of a live kiosk session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result CartResult

			if err := client.Get("/api/v1/sessions/"+url.PathEscape(args[0])+"/cart", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var name, phone, birthday string

	cmd := &cobra.Command{
		Use:   "register <session>",
		Short: "Register the face captured by a kiosk session as a new shopper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || phone == "" {
				return fmt.Errorf("--name and --phone are required")
			}

			req := map[string]string{
				"session_id": args[0],
				"name":       name,
				"phone":      phone,
			}
			if birthday != "" {
				req["birthday"] = birthday
			}
			var result RegisterResult

			if err := client.Post("/api/v1/register", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Shopper name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number (required)")
	cmd.Flags().StringVar(&birthday, "birthday", "", "Birthday as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <session>",
		Short: "Check out the cart of an authenticated kiosk session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"session_id": args[0]}
			var result CheckoutResult

			if err := client.Post("/api/v1/checkout", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions <user>",
		Short: "Show a shopper's purchase history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result TransactionHistory

			if err := client.Get("/api/v1/users/"+url.PathEscape(args[0])+"/transactions", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <user>",
		Short: "Show a shopper's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result UserInfoResult

			if err := client.Get("/api/v1/users/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newReceiptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <transaction>",
		Short: "Show a single committed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ReceiptResult

			if err := client.Get("/api/v1/transactions/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
