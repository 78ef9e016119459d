package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Educational Resource Hub API
// @version 1.0.0
// @description Upload, browse and download categorized educational resources
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var rootCmd = &cobra.Command{
	Use:           "resource-api",
	Short:         "Educational resource hub backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newSeedCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
