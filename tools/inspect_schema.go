package main

import (
	"fmt"
	"log"

	"github.com/localnerve/minisitedb/internal/database"
	"gorm.io/driver/sqlite"
)

// Prints the DDL that AutoMigrate produces on SQLite, for comparison with
// the hand written MariaDB scripts under data/initdb.
func main() {
	db, err := database.Open(sqlite.Open(":memory:"), "silent", 1)
	if err != nil {
		log.Fatal(err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}

	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name").Scan(&tables)

	for _, table := range tables {
		fmt.Printf("\n=== Table: %s ===\n", table)
		var schema string
		db.Raw("SELECT sql FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&schema)
		fmt.Println(schema)

		var indexes []string
		db.Raw("SELECT sql FROM sqlite_master WHERE type='index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name", table).Scan(&indexes)
		for _, index := range indexes {
			fmt.Println(index + ";")
		}
	}
}
