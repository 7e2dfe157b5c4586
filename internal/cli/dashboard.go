package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localstackws/wsgateway/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard [base-url]",
		Short: "Attach a live dashboard to a running gateway's management API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := "http://localhost:8080"
			if len(args) > 0 {
				baseURL = args[0]
			}
			if err := dashboard.Attach(baseURL); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		},
	}
	return cmd
}
