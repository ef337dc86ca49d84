package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botsim/internal/dispatcher"
)

func methodsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the supported Bot API methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := dispatcher.New(cfg.Dispatcher())
			if err != nil {
				return err
			}
			methods := s.Methods()
			out := cmd.OutOrStdout()
			if jsonOutput {
				data, _ := json.MarshalIndent(methods, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, strings.Join(methods, "\n"))
			fmt.Fprintf(out, "\n%d methods\n", len(methods))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
