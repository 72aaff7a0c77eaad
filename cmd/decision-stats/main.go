package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SCPrime/ai-Trader-sub001/config"
	"github.com/SCPrime/ai-Trader-sub001/internal/database"
	"github.com/SCPrime/ai-Trader-sub001/internal/logging"
)

type symbolStats struct {
	Symbol   string
	Total    int
	Executed int
	Rejected int
	Expired  int
	Notional float64
}

func main() {
	limit := flag.Int("limit", 500, "how many recent decisions to analyze")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.DatabaseConfig.Enabled = true

	logger := logging.New(config.LoggingConfig{Level: "warn", Console: true})

	db, err := database.NewDB(cfg.DatabaseConfig, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := repo.DecisionStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch decision stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("TRADE DECISION AUDIT SUMMARY")
	fmt.Println(strings.Repeat("=", 72))

	fmt.Printf("\nTotal decisions: %v\n\n", stats["total"])

	if byStatus, ok := stats["by_status"].(map[string]int64); ok {
		notional, _ := stats["notional"].(map[string]float64)

		statuses := make([]string, 0, len(byStatus))
		for status := range byStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		fmt.Printf("%-12s %8s %14s\n", "STATUS", "COUNT", "NOTIONAL")
		fmt.Println(strings.Repeat("-", 36))
		for _, status := range statuses {
			fmt.Printf("%-12s %8d %14.2f\n", status, byStatus[status], notional[status])
		}
	}

	records, err := repo.ListDecisions(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list decisions: %v\n", err)
		os.Exit(1)
	}

	bySymbol := make(map[string]*symbolStats)
	for _, rec := range records {
		s, ok := bySymbol[rec.Symbol]
		if !ok {
			s = &symbolStats{Symbol: rec.Symbol}
			bySymbol[rec.Symbol] = s
		}
		s.Total++
		s.Notional += rec.Notional
		switch rec.Status {
		case "executed":
			s.Executed++
		case "rejected":
			s.Rejected++
		case "expired":
			s.Expired++
		}
	}

	symbols := make([]*symbolStats, 0, len(bySymbol))
	for _, s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].Total > symbols[j].Total
	})

	fmt.Printf("\nPer symbol (last %d decisions):\n\n", len(records))
	fmt.Printf("%-8s %6s %9s %9s %8s %14s\n", "SYMBOL", "TOTAL", "EXECUTED", "REJECTED", "EXPIRED", "NOTIONAL")
	fmt.Println(strings.Repeat("-", 60))
	for _, s := range symbols {
		fmt.Printf("%-8s %6d %9d %9d %8d %14.2f\n",
			s.Symbol, s.Total, s.Executed, s.Rejected, s.Expired, s.Notional)
	}
}
