package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// documentCmd は署名セッションコマンド。
func documentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage signing sessions",
	}
	cmd.AddCommand(documentCreateCmd())
	cmd.AddCommand(documentSignCmd())
	cmd.AddCommand(documentStatusCmd())
	cmd.AddCommand(documentTokenCmd())
	return cmd
}

func printSession(s handler.SessionResponse) {
	fmt.Printf("Document:  %s\n", s.DocumentID)
	fmt.Printf("Reference: %s\n", s.ReferenceNumber)
	fmt.Printf("State:     %s\n", s.State)
	if s.NextRole != "" {
		fmt.Printf("Next role: %s\n", s.NextRole)
	}
	if s.FailureReason != "" {
		fmt.Printf("Failure:   %s\n", s.FailureReason)
	}
	for _, sig := range s.Signatures {
		fmt.Printf("  %-10s %-30s %s\n", sig.Role, sig.Signer, sig.SignedAt)
	}
	if s.VerificationToken != "" {
		fmt.Printf("Token:     %s\n", s.VerificationToken)
	}
}

func documentCreateCmd() *cobra.Command {
	var req handler.InitiateRequest
	var contentFile, roles string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a document and start its signing session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				content, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("reading content file: %w", err)
				}
				if !json.Valid(content) {
					return fmt.Errorf("content file %s is not valid JSON", contentFile)
				}
				req.Content = content
			}
			if roles != "" {
				req.Roles = strings.Split(roles, ",")
			}

			body, err := call(http.MethodPost, "/v1/documents", req, http.StatusCreated)
			if err != nil {
				return err
			}
			return render(body, printSession)
		},
	}
	cmd.Flags().StringVar(&req.DocumentID, "id", "", "Document ID (generated when omitted)")
	cmd.Flags().StringVar(&req.DocumentType, "type", "", "Document type code (required)")
	cmd.Flags().StringVar(&req.OrgUnit, "org-unit", "", "Org unit code (required)")
	cmd.Flags().StringVar(&req.Date, "date", "", "Date YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&req.ReferenceNumber, "reference-number", "", "Previously allocated reference number")
	cmd.Flags().StringVar(&req.ContentDigest, "digest", "", "SHA-256 hex digest of the canonical content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Path to the JSON content")
	cmd.Flags().StringVar(&roles, "roles", "", "Comma separated signing order (defaults to the document type)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("org-unit")
	return cmd
}

func documentSignCmd() *cobra.Command {
	var id string
	var req handler.SignRequest
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a document as a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, "/v1/documents/"+url.PathEscape(id)+"/signatures", req, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, printSession)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Document ID (required)")
	cmd.Flags().StringVar(&req.Role, "role", "", "Signing role (required)")
	cmd.Flags().StringVar(&req.Signer, "signer", "", "Signer identity (required)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("signer")
	return cmd
}

func documentStatusCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signing session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(s handler.StatusResponse) {
				fmt.Printf("Document:  %s\n", s.DocumentID)
				fmt.Printf("Reference: %s\n", s.ReferenceNumber)
				fmt.Printf("State:     %s (pending: %t)\n", s.State, s.Pending)
				fmt.Printf("Signed:    %s\n", strings.Join(s.SignedRoles, ", "))
				if s.NextRole != "" {
					fmt.Printf("Next role: %s\n", s.NextRole)
				}
				if s.CompletedAt != "" {
					fmt.Printf("Completed: %s\n", s.CompletedAt)
				}
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Document ID (required)")
	cmd.MarkFlagRequired("id")
	return cmd
}

func documentTokenCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a verification token for a completed document",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/documents/"+url.PathEscape(id)+"/token", nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(t handler.TokenResponse) {
				fmt.Println(t.VerificationToken)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Document ID (required)")
	cmd.MarkFlagRequired("id")
	return cmd
}
