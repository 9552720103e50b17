package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regform/internal/scenarios"
)

func newScenariosCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Run the field-rule demonstration scenarios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadScenarios(file)
			if err != nil {
				return err
			}
			now, err := f.Clock(time.Now())
			if err != nil {
				return err
			}
			if rep := scenarios.Run(f, now, cmd.OutOrStdout()); !rep.Passed() {
				return fmt.Errorf("%d of %d scenarios did not behave as expected", rep.Mismatches, rep.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario file (YAML); defaults to the built-in set")
	return cmd
}

func loadScenarios(path string) (scenarios.File, error) {
	if path == "" {
		return scenarios.Default()
	}
	return scenarios.LoadFile(path)
}
