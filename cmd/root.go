package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/capuchin-go/cmd/benchmark"
	"github.com/tphakala/capuchin-go/cmd/directory"
	"github.com/tphakala/capuchin-go/cmd/file"
	"github.com/tphakala/capuchin-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "capuchin",
		Short:         "Capuchin call detector",
		Long:          "Two-stage detection of capuchin monkey calls in long field recordings.",
		Version:       settings.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		file.Command(settings),
		directory.Command(settings),
		benchmark.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// flags have been parsed into settings, check the combination again
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the classifier model file")
	flags.IntVar(&settings.Model.Threads, "threads", viper.GetInt("model.threads"), "Number of inference threads, 0 for automatic")
	flags.Int64Var(&settings.Model.Seed, "seed", viper.GetInt64("model.seed"), "Seed recorded with each run")
	flags.Float64Var(&settings.Detector.ThresholdStage1, "threshold1", viper.GetFloat64("detector.thresholdstage1"), "Stage 1 triage threshold, between 0.0 and 1.0")
	flags.Float64Var(&settings.Detector.ThresholdStage2, "threshold2", viper.GetFloat64("detector.thresholdstage2"), "Stage 2 confirmation threshold, between 0.0 and 1.0")
	flags.Float64Var(&settings.Detector.InnerOverlap, "overlap", viper.GetFloat64("detector.inneroverlap"), "Overlap of Stage 2 inner chunks, between 0.0 and 0.9")
	flags.IntVarP(&settings.Detector.Workers, "workers", "w", viper.GetInt("detector.workers"), "Outer windows scanned concurrently")

	bindings := map[string]string{
		"debug":      "debug",
		"model":      "model.path",
		"threads":    "model.threads",
		"seed":       "model.seed",
		"threshold1": "detector.thresholdstage1",
		"threshold2": "detector.thresholdstage2",
		"overlap":    "detector.inneroverlap",
		"workers":    "detector.workers",
	}
	for name, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
