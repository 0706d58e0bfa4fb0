// Command seed_registry seeds a Supabase project with the default
// requirement-message catalog and, optionally, a demo wallet row so the gate
// can be exercised against a fresh environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oceanledger/bluecarbon/internal/config"
	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/wallet"
	supa "github.com/oceanledger/bluecarbon/supabase/client"
)

func main() {
	var (
		envFile     = flag.String("env", ".env", "Path to .env with Supabase credentials")
		catalogPath = flag.String("catalog", "config/requirements.yaml", "Where to write the requirement-message catalog")
		demoUserID  = flag.String("demo-user", "", "Seed a demo wallet for this user ID")
		demoWallet  = flag.String("demo-wallet", "0xABCDEF1234567890abcdef", "Demo wallet address")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("load env (%s): %v, relying on process environment", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := writeCatalog(*catalogPath); err != nil {
		log.Fatalf("write catalog: %v", err)
	}
	fmt.Printf("Wrote requirement-message catalog to %s\n", *catalogPath)

	if *demoUserID == "" {
		return
	}

	apiKey := cfg.Supabase.ServiceKey
	if apiKey == "" {
		apiKey = cfg.Supabase.AnonKey
	}

	client, err := supa.New(supa.Config{URL: cfg.Supabase.URL, APIKey: apiKey})
	if err != nil {
		log.Fatalf("create supabase client: %v", err)
	}

	store := wallet.NewSupabaseStore(client)
	svc := wallet.NewStatusService(store, nil, config.DefaultMessageCatalog(), logging.NewDefault())

	w, err := svc.Register(context.Background(), *demoUserID, *demoWallet, "demo")
	if err != nil {
		log.Fatalf("seed demo wallet: %v", err)
	}
	fmt.Printf("Seeded demo wallet %s for user %s\n", w.Address, w.UserID)
}

func writeCatalog(path string) error {
	data, err := yaml.Marshal(config.DefaultMessageCatalog())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
