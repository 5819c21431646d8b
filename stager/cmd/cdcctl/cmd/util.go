package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
)

func writeJSON(cmd *cobra.Command, v interface{}) error {
	return output.JSON(cmd.OutOrStdout(), v)
}
