package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
)

// keyCmd は検証トークン鍵コマンド。
func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage verification token keys",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create the first token key",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, "/v1/token-keys", nil, http.StatusCreated)
			if err != nil {
				return err
			}
			return render(body, func(k handler.KeyMetadataResponse) {
				fmt.Printf("Created token key (generation: %d)\n", k.Generation)
			})
		},
	}

	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the token key",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodPost, "/v1/token-keys/rotate", nil, http.StatusCreated)
			if err != nil {
				return err
			}
			return render(body, func(k handler.KeyMetadataResponse) {
				fmt.Printf("Rotated token key (new generation: %d)\n", k.Generation)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all token key generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(http.MethodGet, "/v1/token-keys", nil, http.StatusOK)
			if err != nil {
				return err
			}
			return render(body, func(l handler.KeyListResponse) {
				fmt.Printf("%-12s %-10s %s\n", "GENERATION", "STATUS", "CREATED_AT")
				for _, k := range l.Keys {
					fmt.Printf("%-12d %-10s %s\n", k.Generation, k.Status, k.CreatedAt)
				}
			})
		},
	}

	var generation uint
	disable := &cobra.Command{
		Use:   "disable",
		Short: "Disable a token key generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generation == 0 {
				return fmt.Errorf("--generation is required")
			}
			if _, err := call(http.MethodDelete, fmt.Sprintf("/v1/token-keys/%d", generation), nil, http.StatusAccepted); err != nil {
				return err
			}
			if output == "json" {
				fmt.Println("{}")
			} else {
				fmt.Printf("Disabled token key (generation: %d)\n", generation)
			}
			return nil
		},
	}
	disable.Flags().UintVar(&generation, "generation", 0, "Key generation (required)")
	disable.MarkFlagRequired("generation")

	cmd.AddCommand(create, rotate, list, disable)
	return cmd
}
