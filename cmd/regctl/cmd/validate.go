package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regform/internal/validation"
)

var errInvalidForm = errors.New("registration is invalid")

func newValidateCommand() *cobra.Command {
	values := make(map[validation.Field]*string, len(validation.Fields))
	var now string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a registration against the field rules",
		Example: `  regctl validate --first-name Jean --last-name Dupont --email jean@example.com \
    --birth-date 1980-05-12 --city Paris --postal-code 75001`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now()
			if now != "" {
				d, err := validation.ParseDate(now)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				at = d.Time(time.Local)
			}

			draft := validation.Draft{}
			for field, v := range values {
				draft[field] = *v
			}
			res := validation.ValidateForm(draft, at)

			out := cmd.OutOrStdout()
			for _, field := range validation.Fields {
				if o, failed := res.Errors[field]; failed {
					fmt.Fprintf(out, "%-12s %s: %s\n", field.Label(), o.Code(), o.Message())
					continue
				}
				fmt.Fprintf(out, "%-12s ok\n", field.Label())
			}
			if !res.Valid() {
				return errInvalidForm
			}
			fmt.Fprintln(out, "registration is valid")
			return nil
		},
	}

	flags := map[validation.Field]string{
		validation.FirstName:  "first-name",
		validation.LastName:   "last-name",
		validation.Email:      "email",
		validation.BirthDate:  "birth-date",
		validation.City:       "city",
		validation.PostalCode: "postal-code",
	}
	for _, field := range validation.Fields {
		values[field] = cmd.Flags().String(flags[field], "", field.Label())
	}
	cmd.Flags().StringVar(&now, "now", "", "date used for the age check (YYYY-MM-DD)")
	return cmd
}
