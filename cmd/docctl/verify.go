package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// verifyCmd は検証トークンの検証コマンド。
func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a document verification token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, "/v1/verify", handler.VerifyRequest{Token: args[0]}, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(v handler.VerifyResponse) {
				fmt.Printf("Status: %s\n", v.Status)
				if d := v.Document; d != nil {
					fmt.Printf("Document:  %s (%s/%s)\n", d.DocumentID, d.DocumentType, d.OrgUnit)
					fmt.Printf("Reference: %s\n", d.ReferenceNumber)
					fmt.Printf("Digest:    %s\n", d.ContentDigest)
					fmt.Printf("Completed: %s\n", d.CompletedAt)
					for _, s := range d.Signatures {
						fmt.Printf("  %-10s %-30s %s\n", s.Role, s.Signer, s.SignedAt)
					}
					fmt.Printf("Verified %d time(s)\n", d.VerificationCount)
				}
			})
		},
	}
}
