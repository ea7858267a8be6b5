package directory

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/capuchin-go/internal/analysis"
	"github.com/tphakala/capuchin-go/internal/conf"
)

// Command creates a new cobra.Command for directory analysis.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory [path]",
		Short: "Analyze all WAV and FLAC files in a directory",
		Long:  "Provide a directory path to analyze every recording within it. Recordings with existing results are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The directory to analyze is passed as the first argument
			settings.Input.Path = args[0]
			return analysis.DirectoryAnalysis(cmd.Context(), settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags defines flags specific to the directory command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().BoolVarP(&settings.Input.Recursive, "recursive", "r", false, "Recursively analyze subdirectories")
	cmd.Flags().StringVarP(&settings.Output.File.Path, "output", "o", viper.GetString("output.file.path"), "Path to output directory, defaults to the current directory")
	cmd.Flags().StringVarP(&settings.Output.File.Type, "format", "f", "csv", "Output format: table, csv, json")
}
