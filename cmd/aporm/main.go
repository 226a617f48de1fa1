package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"

	"go.uber.org/zap"

	orm "github.com/raisfeld-ori/appwrite-orm"
	"github.com/raisfeld-ori/appwrite-orm/schema"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadSchemas(schema_path string) ([]schema.Table, error) {
	if !path.IsAbs(schema_path) {
		cwd, _ := os.Getwd()
		schema_path = path.Join(cwd, schema_path)
	}

	data, err := os.ReadFile(schema_path)
	if err != nil {
		return nil, err
	}

	var tables []schema.Table
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("invalid schema file %s: %w", schema_path, err)
	}
	return tables, nil
}

func main() {
	schema_path := flag.String("schema", "./schema.json", "path to the table definitions file")
	endpoint := flag.String("endpoint", envOr("APORM_ENDPOINT", ""), "backend endpoint url")
	project := flag.String("project", envOr("APORM_PROJECT_ID", ""), "backend project id")
	database := flag.String("database", envOr("APORM_DATABASE_ID", ""), "database id")
	api_key := flag.String("key", envOr("APORM_API_KEY", ""), "backend api key")
	do_migrate := flag.Bool("migrate", false, "apply missing schema instead of only validating")
	dev := flag.Bool("dev", false, "run against the in-process dev store")
	data_dir := flag.String("data", "", "dev store persistence directory")

	flag.Parse()

	tables, err := loadSchemas(*schema_path)
	if err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := orm.Config{
		Endpoint:    *endpoint,
		ProjectID:   *project,
		DatabaseID:  *database,
		APIKey:      *api_key,
		AutoMigrate: *do_migrate,
		Development: *dev,
		DataDir:     *data_dir,
		Logger:      logger.Sugar(),
	}

	o, err := orm.New(context.Background(), cfg, tables...)
	if err != nil {
		if *do_migrate {
			fmt.Printf("Migration failed; %s\n", err.Error())
		} else {
			fmt.Printf("Invalid schema state; %s\n", err.Error())
		}
		os.Exit(1)
	}
	defer o.Close()

	if *do_migrate {
		fmt.Printf("Migration successful: %d tables up to date\n", len(tables))
	} else {
		fmt.Println("Schema checks successful: backend matches declared tables")
	}
}
