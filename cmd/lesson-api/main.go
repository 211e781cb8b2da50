package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title Lesson Registration API
// @version 1.0.0
// @description Private lesson and group class registrations for the music program
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var calendarFile string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lesson-api",
		Short:         "Music lesson registration service",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&calendarFile, "calendar", "", "Path to the trimester calendar YAML (overrides CALENDAR_FILE)")
	root.AddCommand(newServeCommand(), newSchemaCommand(), newTokenCommand())
	return root
}
