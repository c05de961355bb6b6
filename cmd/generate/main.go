package main

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-research/internal/registry"
)

const (
	schemaName   = "assets.schema.json"
	registryName = "assets.yaml"
)

func sampleRegistry() registry.File {
	return registry.File{
		SchemaVersion: "1.0.0",
		Assets: []registry.Asset{
			{
				Key:  "spy",
				Kind: "etf",
				Name: "SPDR S&P 500 ETF",
				Identifiers: map[string]string{
					"stooq": "spy.us",
					"yahoo": "SPY",
				},
			},
			{
				Key:  "btc",
				Kind: "crypto",
				Name: "Bitcoin",
				Identifiers: map[string]string{
					"binance": "BTCUSDT",
					"yahoo":   "BTC-USD",
				},
			},
		},
	}
}

func main() {
	// Generate schema JSON
	schemaJSON, err := registry.Schema()
	if err != nil {
		log.Fatalf("Failed to generate schema: %v", err)
	}

	schemaPath := filepath.Join("./configs", schemaName)
	samplePath := filepath.Join("./configs", registryName)

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		log.Fatalf("Failed to write schema to file: %v", err)
	}

	// never overwrite a curated registry
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(sampleRegistry())
		if err != nil {
			log.Fatalf("Failed to marshal sample registry to yaml: %v", err)
		}

		yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

		if err := os.WriteFile(samplePath, yamlBytes, 0644); err != nil {
			log.Fatalf("Failed to write sample registry to file: %v", err)
		}

		log.Printf("Sample registry successfully generated at %s", samplePath)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)
}
