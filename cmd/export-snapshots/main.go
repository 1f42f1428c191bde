package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/tabular"
)

func main() {
	out := flag.String("out", "snapshots.xlsx", "Output .xlsx path")
	group := flag.String("group", "", "Optional: one snapshot group (default all)")
	ledger := flag.Bool("ledger", false, "Export the full ledger instead of snapshots")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	if *ledger {
		if err := tabular.ExportLedger(db, *out); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ledger exported to %s\n", *out)
		return
	}

	if err := tabular.ExportSnapshots(db, strings.TrimSpace(*group), *out); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("snapshots exported to %s\n", *out)
}
