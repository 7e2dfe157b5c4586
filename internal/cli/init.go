package cli

import (
	"github.com/spf13/cobra"

	"github.com/localstackws/wsgateway/internal/prompt"
	"github.com/localstackws/wsgateway/internal/wizard"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard to generate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			w := wizard.New(prompt.DefaultPrompter())
			return w.Run(output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output config file path (default: ./wsgateway.json)")
	return cmd
}
