// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev driver (devdriver) already exists.
package main

import (
	"context"
	"log"
	"os"

	companyrepo "admin-portal/backend/internal/company/repository"
	"admin-portal/backend/internal/config"
	"admin-portal/backend/internal/db"
	"admin-portal/backend/internal/security"
	userdomain "admin-portal/backend/internal/user/domain"
	userrepo "admin-portal/backend/internal/user/repository"
)

const (
	devUsername  = "devdriver"
	devPassword  = "password123"
	devPowerUnit = "PU-001"
)

var seedCompanies = map[string]string{
	"ACME": "Acme Freight",
	"NWD":  "Northwest Dispatch",
}

var seedModules = map[string]string{
	"/dispatch": "Dispatch",
	"/billing":  "Billing",
	"/drivers":  "Driver Management",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresUserRepository(pool)

	existing, err := users.GetByUsername(ctx, devUsername)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", devUsername)
		os.Exit(0)
	}

	for key, name := range seedCompanies {
		if _, err := pool.ExecContext(ctx, `
			INSERT INTO companies (company_key, company_name)
			VALUES ($1, $2)
			ON CONFLICT (company_key) DO NOTHING`, key, name); err != nil {
			log.Fatalf("seed company %s: %v", key, err)
		}
	}
	for url, name := range seedModules {
		if _, err := pool.ExecContext(ctx, `
			INSERT INTO modules (module_url, module_name)
			VALUES ($1, $2)
			ON CONFLICT (module_url) DO NOTHING`, url, name); err != nil {
			log.Fatalf("seed module %s: %v", url, err)
		}
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	powerUnit := devPowerUnit
	if _, err := users.Create(ctx, userdomain.User{
		Username:     devUsername,
		PasswordHash: &passwordHash,
		PowerUnit:    &powerUnit,
		Companies:    []string{"ACME", "NWD"},
		Modules:      []string{"/dispatch", "/billing", "/drivers"},
	}); err != nil {
		log.Fatalf("create dev driver: %v", err)
	}

	companies := companyrepo.NewPostgresCompanyRepository(pool)
	if all, err := companies.Companies(ctx); err == nil {
		log.Printf("Seeded %d companies, %d modules, dev driver %q.", len(all), len(seedModules), devUsername)
	} else {
		log.Printf("Seeded dev driver %q.", devUsername)
	}
}
