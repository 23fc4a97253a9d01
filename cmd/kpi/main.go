package main

import (
	"os"

	"github.com/databokers/backoffice/cmd/kpi/commands"
)

// main is the entry point for the Databokers KPI CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
