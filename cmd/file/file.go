package file

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/capuchin-go/internal/analysis"
	"github.com/tphakala/capuchin-go/internal/conf"
)

// Command creates a new file command for analyzing a single audio file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  `Analyze a single WAV or FLAC recording for capuchin calls.`,
		Args:  cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			return analysis.FileAnalysis(cmd.Context(), settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the file command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVarP(&settings.Output.File.Path, "output", "o", viper.GetString("output.file.path"), "Path to output directory, results go to stdout when empty")
	cmd.Flags().StringVarP(&settings.Output.File.Type, "format", "f", viper.GetString("output.file.type"), "Output format: table, csv, json")
}
