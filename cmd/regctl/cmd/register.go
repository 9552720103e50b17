package cmd

import (
	"github.com/spf13/cobra"

	tuiregistration "regform/internal/tui/registration"
)

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Fill in the registration form",
		Long: `Opens the interactive registration form.

Fields are checked when you leave them; Submit is enabled once every
field is valid. A successful save clears the form for the next entry.

Keys:
  Tab/Shift+Tab  move between fields
  Enter          next field, or submit on the button
  Esc/Ctrl+C     quit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, backend, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()
			return tuiregistration.Run(cmd.Context(), svc)
		},
	}
}
