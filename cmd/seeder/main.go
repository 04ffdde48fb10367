// cmd/seeder/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

// The seeder writes the default templates and a sample contact file.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, "text", "")

	customizer := service.NewCustomizer(log)
	templates := service.NewTemplateService(repository.NewTemplateRepository(cfg.Data.TemplatesDir, log), customizer, log)
	if err := templates.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}
	n, err := templates.SeedDefaults()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed templates")
	}
	fmt.Printf("Seeded: %d templates into %s\n", n, cfg.Data.TemplatesDir)

	contacts := service.NewContactService(repository.NewContactRepository(cfg.Data.ContactsDir, log), log)
	samplePath := filepath.Join(cfg.Data.ContactsDir, "sample.csv")
	if _, err := os.Stat(samplePath); err == nil {
		fmt.Printf("Skipped: %s already exists\n", samplePath)
	} else {
		if err := contacts.CreateSample(samplePath); err != nil {
			log.Fatal().Err(err).Msg("failed to write sample contacts")
		}
		fmt.Printf("Seeded: %s\n", samplePath)
	}

	fmt.Println("Seeding completed successfully!")
}
