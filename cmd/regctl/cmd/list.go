package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"regform/internal/registration/models"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, backend, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			regs, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(regs)
			}
			printUsers(cmd.OutOrStdout(), regs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printUsers(w io.Writer, regs []models.Registration) {
	if len(regs) == 0 {
		fmt.Fprintln(w, "No users registered yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Name", "Email", "Birth date", "City", "Postal code")
	for _, reg := range regs {
		t.Row(reg.ID, reg.FullName(), reg.Email, reg.BirthDate.String(), reg.City, reg.PostalCode)
	}
	fmt.Fprintln(w, t.String())
	if len(regs) == 1 {
		fmt.Fprintln(w, "1 registered user")
		return
	}
	fmt.Fprintf(w, "%d registered users\n", len(regs))
}
