package main

import (
	"fmt"
	"log"

	"docbucket/app"
	"docbucket/config"
	"docbucket/sampledata"
)

func main() {
	// Parse command line flags
	cli := sampledata.ParseFlags()

	application, err := newApplication(cli)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Handle any CLI data operations (sample data, clear data)
	if !sampledata.HandleDataOperations(cli, application.GetContainer().Operations) {
		if err := application.Stop(); err != nil {
			log.Printf("Error stopping application: %v", err)
		}
		return
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

// newApplication builds the application from the environment defaults with
// the command line overrides applied
func newApplication(cli *sampledata.Config) (*app.Application, error) {
	cfg := config.Defaults
	if err := cli.Apply(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.NewApplicationWithConfig(&cfg)
}
