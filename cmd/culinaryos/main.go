package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rai1001/CulinaryOs/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "culinaryos",
	Short: "Production planning for catering kitchens",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := cli.Execute(rootCmd); err != nil {
		os.Exit(1)
	}
}
