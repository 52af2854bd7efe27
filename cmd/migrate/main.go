package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/samirrijal/routecast/internal/adapters/postgres"
	"github.com/samirrijal/routecast/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|version|force N>")
	}

	cfg, err := config.Load("routecast-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	m, err := postgres.NewMigrate(cfg.Database.MigrateURL())
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer m.Close()

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate force N")
		}
		v, perr := strconv.Atoi(os.Args[2])
		if perr != nil {
			log.Fatalf("force: %v", perr)
		}
		err = m.Force(v)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("no change")
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
	log.Printf("%s complete", os.Args[1])
}
