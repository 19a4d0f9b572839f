package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sqlsimproject/sqlsim/internal/common/app"
	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/orchestrator"
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the simulation configuration file")
	rootCmd.AddCommand(runCmd)
}

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one simulation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configuration.Load(configPath)
		if err != nil {
			return err
		}
		logging.MustConfigureApplicationLogging(config.Logging)

		ctx := app.CreateContextWithShutdown()
		return orchestrator.NewRunner(config).Run(ctx)
	},
	SilenceUsage: true,
}
