package main

import (
	"context"
	"log"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
)

func main() {
	log.Println("Schema Migration Job - Starting")

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration Job - Finished")
}
