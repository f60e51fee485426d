package sampledata

import (
	"context"
	"flag"
	"log"
	"time"

	"docbucket/config"
	"docbucket/core"
)

// Config holds CLI configuration
type Config struct {
	MockData  bool
	ClearData bool
	Backend   string // Overrides DOCBUCKET_BACKEND when set
	Port      string // Overrides HTTP_PORT when set
}

// ParseFlags parses command line flags and returns CLI config
func ParseFlags() *Config {
	cli := &Config{}
	flag.BoolVar(&cli.MockData, "mock-data", false, "Populate the bucket with sample customers")
	flag.BoolVar(&cli.ClearData, "clear-data", false, "Remove the sample customers from the bucket")
	flag.StringVar(&cli.Backend, "backend", "", "Store backend: bolt, sqlite, redis or memory")
	flag.StringVar(&cli.Port, "port", "", "HTTP port to listen on")
	flag.Parse()
	return cli
}

// Apply copies the flag overrides onto cfg and validates the result
func (c *Config) Apply(cfg *config.Config) error {
	if c.Backend != "" {
		cfg.Bucket.Backend = c.Backend
	}
	if c.Port != "" {
		cfg.HTTP.Port = c.Port
	}
	return cfg.Validate()
}

// HandleDataOperations registers the sample designs and runs the requested
// data operations. It returns true if the application should continue
// running, false if it should exit.
func HandleDataOperations(cli *Config, ops core.Operations) bool {
	if ops == nil {
		return true
	}

	mockService := NewMockDataService(ops)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mockService.RegisterDesigns(ctx); err != nil {
		log.Fatalf("Failed to register sample designs: %v", err)
	}
	if !cli.ClearData && !cli.MockData {
		return true
	}

	if cli.ClearData {
		log.Println("Clearing sample data from the bucket...")
		if err := mockService.ClearAllData(ctx); err != nil {
			log.Fatalf("Failed to clear sample data: %v", err)
		}
		log.Println("Sample data cleared successfully")
	}

	if cli.MockData {
		log.Println("Populating the bucket with sample data...")
		if err := mockService.PopulateMockData(ctx); err != nil {
			log.Fatalf("Failed to populate sample data: %v", err)
		}
		log.Println("Sample data populated successfully")
	}

	// Keep serving only when extra arguments follow the data flags
	return flag.NArg() > 0
}
