// seed-sources registers monitored sources from a YAML file.
//
// The file holds a list of source definitions:
//
//	sources:
//	  - name: BaFin Licensing Fees
//	    url: https://www.bafin.de/licensing
//	    jurisdiction: DE
//	    project_prompt: Track changes to licensing fees and deadlines
//	    scan_interval: daily
//	    enabled: true
//
// Sources whose name already exists are skipped, so the script is safe to
// re-run after editing the file.
//
// Usage: go run ./scripts/seed-sources [-file sources.yaml]
//
// Database connection: Uses standard PG* environment variables
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/crypto"
	"github.com/lexwatch/lexwatch-engine/pkg/database"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/repositories"
)

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	Name               string            `yaml:"name"`
	URL                string            `yaml:"url"`
	Jurisdiction       string            `yaml:"jurisdiction"`
	ProjectPrompt      string            `yaml:"project_prompt"`
	JurisdictionPrompt string            `yaml:"jurisdiction_prompt"`
	AuthCredentials    map[string]string `yaml:"auth_credentials"`
	ScanInterval       string            `yaml:"scan_interval"`
	Enabled            *bool             `yaml:"enabled"`
}

func main() {
	file := flag.String("file", "sources.yaml", "YAML file with source definitions")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", *file, err)
		os.Exit(1)
	}
	if len(seed.Sources) == 0 {
		fmt.Fprintf(os.Stderr, "No sources defined in %s\n", *file)
		os.Exit(1)
	}

	cfg, err := config.Load("seed-sources")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewConnectionFromConfig(ctx, &cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Match the engine's storage format: seal credentials when a key is set.
	var encryptor *crypto.CredentialEncryptor
	if cfg.CredentialsKey != "" {
		encryptor, err = crypto.NewCredentialEncryptor(cfg.CredentialsKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create credential encryptor: %v\n", err)
			os.Exit(1)
		}
	}

	repo := repositories.NewSourceRepository(db, encryptor)

	existing, err := repo.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list existing sources: %v\n", err)
		os.Exit(1)
	}
	known := make(map[string]bool, len(existing))
	for _, source := range existing {
		known[source.Name] = true
	}

	created, skipped := 0, 0
	for _, entry := range seed.Sources {
		if entry.Name == "" || entry.URL == "" {
			fmt.Fprintf(os.Stderr, "Skipping entry with missing name or url: %+v\n", entry)
			skipped++
			continue
		}
		if !models.IsValidScanInterval(entry.ScanInterval) {
			fmt.Fprintf(os.Stderr, "Skipping %q: unknown scan_interval %q\n", entry.Name, entry.ScanInterval)
			skipped++
			continue
		}
		if known[entry.Name] {
			fmt.Printf("Skipping %q: already registered\n", entry.Name)
			skipped++
			continue
		}

		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		source := &models.Source{
			Name:               entry.Name,
			URL:                entry.URL,
			Jurisdiction:       entry.Jurisdiction,
			ProjectPrompt:      entry.ProjectPrompt,
			JurisdictionPrompt: entry.JurisdictionPrompt,
			AuthCredentials:    entry.AuthCredentials,
			ScanInterval:       entry.ScanInterval,
			Enabled:            enabled,
		}
		if err := repo.Create(ctx, source); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %q: %v\n", entry.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Created %q (%s)\n", source.Name, source.ID)
		created++
	}

	fmt.Printf("Done: %d created, %d skipped\n", created, skipped)
}
