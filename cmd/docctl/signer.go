package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// signerCmd は署名者鍵コマンド。
func signerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signer",
		Short: "Manage signer role keys",
	}

	var role string
	register := &cobra.Command{
		Use:   "register",
		Short: "Generate and register a key pair for a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, "/v1/signers", handler.RegisterSignerRequest{Role: role}, http.StatusCreated)
			if err != nil {
				return err
			}
			return render(body, func(s handler.SignerResponse) {
				fmt.Printf("Registered signer %q (key: %s)\n", s.Role, s.KeyID)
			})
		},
	}
	register.Flags().StringVar(&role, "role", "", "Role code (required)")
	register.MarkFlagRequired("role")

	var getRole string
	get := &cobra.Command{
		Use:   "get",
		Short: "Show the public key of a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/signers/"+url.PathEscape(getRole), nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(s handler.SignerResponse) {
				fmt.Printf("%s %s %s\n", s.Role, s.Algorithm, s.PublicKey)
			})
		},
	}
	get.Flags().StringVar(&getRole, "role", "", "Role code (required)")
	get.MarkFlagRequired("role")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered signers",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/signers", nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(l handler.SignerListResponse) {
				fmt.Printf("%-12s %-10s %s\n", "ROLE", "ALGORITHM", "CREATED_AT")
				for _, s := range l.Signers {
					fmt.Printf("%-12s %-10s %s\n", s.Role, s.Algorithm, s.CreatedAt)
				}
			})
		},
	}

	cmd.AddCommand(register, get, list)
	return cmd
}
