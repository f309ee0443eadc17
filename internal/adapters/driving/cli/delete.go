package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its chunks and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline not configured")
	}

	if err := pipelineService.Delete(cmd.Context(), flagTenant, args[0]); err != nil {
		return describeFailure("delete", err)
	}

	cmd.Println(successStyle.Render("Deleted " + args[0]))
	return nil
}
