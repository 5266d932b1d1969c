// delta-report writes the delta pipeline report for one business to an
// Excel file. Useful for ad-hoc carrier negotiations without hitting the API.
//
// Usage:
//   go run ./cmd/delta-report -business <id> -out report.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models/reports"
)

func main() {
	businessId := flag.String("business", "", "business id (required)")
	out := flag.String("out", "delta-report.xlsx", "output file path")
	flag.Parse()

	if *businessId == "" {
		fmt.Fprintln(os.Stderr, "usage: delta-report -business <id> [-out file.xlsx]")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if err := reports.SaveDeltaReportExcel(ctx, *businessId, *out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}
