// Command cbmgmt runs Couchbase user and view index management operations
// from the command line.
//
//	cbmgmt ops
//	cbmgmt run GET_USER --args '{"domain":"local","username":"alice"}'
//	cbmgmt run GET_ALL_INDEXES --args '{"bucket_name":"travel","name_space":"production"}' --output yaml
//
// Connection settings come from --config, a .env file and CBMGMT_* environment
// variables, in that order of increasing precedence.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cbmgmt",
	Short: "Couchbase user and view index management",
	Long: `Run Couchbase RBAC user/group and view design document management
operations against a cluster.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errOperationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func main() {
	Execute()
}
