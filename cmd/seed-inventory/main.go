package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/schoolhub/booking-backend/internal/config"
	"github.com/schoolhub/booking-backend/internal/database"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SeedFile lists the inventory to create, per school
type SeedFile struct {
	Schools []SchoolSeed `yaml:"schools"`
}

// SchoolSeed is the inventory of one school
type SchoolSeed struct {
	ID      string                       `yaml:"id"`
	Buses   []models.CreateBusRequest    `yaml:"buses"`
	Hostels []models.CreateHostelRequest `yaml:"hostels"`
}

// SeedReport counts what a seed run did
type SeedReport struct {
	Created int
	Skipped int
}

func main() {
	var (
		file   string
		dbURL  string
		dryRun bool
	)
	flag.StringVar(&file, "file", "inventory.yaml", "YAML inventory file")
	flag.StringVar(&dbURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate against an in-memory store without touching the database")
	flag.Parse()

	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	seed, err := loadSeed(file)
	if err != nil {
		logger.Fatalf("Failed to read seed file: %v", err)
	}

	var store services.ResourceStore
	if dryRun {
		store = database.NewMemoryStore()
	} else {
		if dbURL == "" {
			dbURL = os.Getenv("DATABASE_URL")
		}
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
		}
		db, err := database.NewConnection(config.DatabaseConfig{
			URL:                dbURL,
			MaxConnections:     5,
			MaxIdleConnections: 2,
		})
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = database.NewResourceRepository(db.DB)
	}

	inventory := services.NewInventoryService(store, nil, logger)
	report, err := applySeed(context.Background(), inventory, seed)
	if err != nil {
		logger.Fatalf("Seeding failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"created": report.Created,
		"skipped": report.Skipped,
		"dry_run": dryRun,
	}).Info("Inventory seeded")
}

func loadSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, school := range seed.Schools {
		if school.ID == "" {
			return nil, fmt.Errorf("schools[%d]: id is required", i)
		}
	}
	return &seed, nil
}

// applySeed creates every resource in seed. Resources that already exist are
// skipped so the same file can be applied twice.
func applySeed(ctx context.Context, inventory *services.InventoryService, seed *SeedFile) (SeedReport, error) {
	var report SeedReport

	for _, school := range seed.Schools {
		admin := models.Caller{
			UserID:   "seed-inventory",
			SchoolID: school.ID,
			Roles:    []string{models.RoleSchoolAdmin},
		}

		for i := range school.Buses {
			bus := school.Buses[i]
			_, err := inventory.CreateBus(ctx, admin, &bus)
			if err := tally(&report, err); err != nil {
				return report, fmt.Errorf("school %s bus %s: %w", school.ID, bus.BusNumber, err)
			}
		}

		for i := range school.Hostels {
			hostel := school.Hostels[i]
			_, err := inventory.CreateHostel(ctx, admin, &hostel)
			if err := tally(&report, err); err != nil {
				return report, fmt.Errorf("school %s hostel %s: %w", school.ID, hostel.Name, err)
			}
		}
	}

	return report, nil
}

func tally(report *SeedReport, err error) error {
	switch {
	case err == nil:
		report.Created++
	case errors.Is(err, models.ErrDuplicateResource):
		report.Skipped++
	default:
		return err
	}
	return nil
}
