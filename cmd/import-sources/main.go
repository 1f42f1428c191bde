package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/tabular"
)

func main() {
	path := flag.String("file", "", "Required: path to the source .xlsx workbook")
	flag.Parse()

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	reports, err := tabular.ImportWorkbook(db, *path, logger)
	for _, r := range reports {
		fmt.Printf("%s: imported=%d skipped=%d\n", r.Table, r.Imported, r.Skipped)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}
