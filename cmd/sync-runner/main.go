package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/workflow"
)

func main() {
	connectorName := flag.String("connector", "", "Optional: run one connector (receiving/transfer/sales). Default runs all.")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	cfg := config.LoadInventoryConfig()
	ctx := context.Background()

	if name := strings.TrimSpace(*connectorName); name != "" {
		connector, ok := workflow.ConnectorByName(name)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown connector %q\n", name)
			os.Exit(1)
		}
		summary, err := connector.Sync(ctx, db, logger, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: posted=%d duplicates=%d skipped=%d errors=%d\n",
			summary.Connector, summary.Posted, summary.Duplicates, summary.Skipped, summary.Errors)
		return
	}

	summaries, err := workflow.RunAll(ctx, db, logger, cfg)
	for _, s := range summaries {
		fmt.Printf("%s: posted=%d duplicates=%d skipped=%d errors=%d\n",
			s.Connector, s.Posted, s.Duplicates, s.Skipped, s.Errors)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}
}
