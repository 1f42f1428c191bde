package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/workflow"
)

func main() {
	keepZeroRows := flag.Bool("keep-zero-rows", false, "Keep zero-quantity zero-cost snapshot rows")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	cfg := config.LoadInventoryConfig()
	if *keepZeroRows {
		cfg.KeepZeroRows = true
	}

	if err := workflow.RebuildSnapshots(context.Background(), db, logger, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("snapshots rebuilt")
}
