package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sqlsim command",
	Short: "Workload simulation and observation engine for relational databases",
	Long: `
sqlsim populates a relational schema with synthetic, relationally consistent
data, drives concurrent weighted query workloads against it for a bounded
duration, samples OS and DBMS metrics while they run, and evaluates heuristic
rules over the collected samples to emit tuning recommendations.

A run is described by a single YAML configuration file; see the configuration
package documentation for the format.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error(err)
		os.Exit(1)
	}
}
