// Command leaguestats turns league screenshots into player statistics and
// ranks players with administrator-defined rating formulas.
//
// Usage:
//
//	leaguestats serve
//	leaguestats migrate
//	leaguestats watch --dir inbox --workers 2
//	leaguestats formula check "goals*4 + assists*3"
//	leaguestats token --user alice --role administrator --ttl 24h
//	leaguestats report --formula attack --season 2026 --top 10
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "leaguestats",
		Short:        "League statistics ingestion and player ratings",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(formulaCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(reportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
