package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// numberCmd は参照番号コマンド。
func numberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "number",
		Short: "Allocate or preview reference numbers",
	}
	cmd.AddCommand(numberSubCmd("allocate", "Allocate the next reference number", "/v1/reference-numbers", http.StatusCreated))
	cmd.AddCommand(numberSubCmd("preview", "Preview the next reference number without consuming it", "/v1/reference-numbers/preview", http.StatusOK))
	return cmd
}

func numberSubCmd(use, short, path string, wantStatus int) *cobra.Command {
	var req handler.RefNumberRequest
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, path, req, wantStatus)
			if err != nil {
				return err
			}
			return render(body, func(r handler.RefNumberResponse) {
				fmt.Println(r.ReferenceNumber)
			})
		},
	}
	cmd.Flags().StringVar(&req.DocumentType, "type", "", "Document type code (required)")
	cmd.Flags().StringVar(&req.OrgUnit, "org-unit", "", "Org unit code (required)")
	cmd.Flags().StringVar(&req.Date, "date", "", "Date YYYY-MM-DD (defaults to today)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("org-unit")
	return cmd
}
