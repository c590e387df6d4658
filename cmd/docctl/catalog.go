package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// catalogCmd は文書種別と組織単位のコマンド。
func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage document types and org units",
	}
	cmd.AddCommand(documentTypeCmd())
	cmd.AddCommand(orgUnitCmd())
	return cmd
}

func documentTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Manage document types",
	}

	var code, roles string
	var req handler.DocumentTypeRequest
	put := &cobra.Command{
		Use:   "put",
		Short: "Register or update a document type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if roles != "" {
				req.RequiredRoles = strings.Split(roles, ",")
			}
			body, err := call(http.MethodPut, "/v1/document-types/"+url.PathEscape(code), req, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(d handler.DocumentTypeResponse) {
				fmt.Printf("%s %q roles=%s\n", d.Code, d.Name, strings.Join(d.RequiredRoles, ","))
			})
		},
	}
	put.Flags().StringVar(&code, "code", "", "Document type code (required)")
	put.Flags().StringVar(&req.Name, "name", "", "Display name")
	put.Flags().StringVar(&roles, "roles", "", "Comma separated default signing order (required)")
	put.MarkFlagRequired("code")
	put.MarkFlagRequired("roles")

	list := &cobra.Command{
		Use:   "list",
		Short: "List document types",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/document-types", nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(l map[string][]handler.DocumentTypeResponse) {
				fmt.Printf("%-10s %-30s %s\n", "CODE", "NAME", "ROLES")
				for _, d := range l["document_types"] {
					fmt.Printf("%-10s %-30s %s\n", d.Code, d.Name, strings.Join(d.RequiredRoles, ","))
				}
			})
		},
	}

	cmd.AddCommand(put, list)
	return cmd
}

func orgUnitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org-unit",
		Short: "Manage org units",
	}

	var code string
	var req handler.OrgUnitRequest
	put := &cobra.Command{
		Use:   "put",
		Short: "Register or update an org unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPut, "/v1/org-units/"+url.PathEscape(code), req, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(o handler.OrgUnitResponse) {
				fmt.Printf("%s %q\n", o.Code, o.Name)
			})
		},
	}
	put.Flags().StringVar(&code, "code", "", "Org unit code (required)")
	put.Flags().StringVar(&req.Name, "name", "", "Display name")
	put.MarkFlagRequired("code")

	list := &cobra.Command{
		Use:   "list",
		Short: "List org units",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/org-units", nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(l map[string][]handler.OrgUnitResponse) {
				fmt.Printf("%-10s %s\n", "CODE", "NAME")
				for _, o := range l["org_units"] {
					fmt.Printf("%-10s %s\n", o.Code, o.Name)
				}
			})
		},
	}

	cmd.AddCommand(put, list)
	return cmd
}
