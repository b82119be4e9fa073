package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmarkov/duebook/internal/clock"
	"github.com/dmarkov/duebook/internal/config"
	"github.com/dmarkov/duebook/internal/cycle"
	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/engine"
	"github.com/dmarkov/duebook/internal/forecast"
	"github.com/dmarkov/duebook/internal/logger"
	"github.com/dmarkov/duebook/internal/store"
	"github.com/dmarkov/duebook/internal/store/sqlite"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		runAdd(log)
	case "list":
		runList(log)
	case "pay":
		runPay(log)
	case "forecast":
		runForecast(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Duebook CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  duebook <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  add       Add a new bill")
	fmt.Println("  list      List tracked bills")
	fmt.Println("  pay       Record a payment against a bill")
	fmt.Println("  forecast  Project upcoming obligations")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'duebook <command> -h' for more information on a command.")
}

func openStore(log zerolog.Logger) *sqlite.Store {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	st, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open store")
	}
	return st
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Bill title")
	amount := fs.Int64("amount", 0, "Amount in minor units (cents)")
	frequency := fs.String("frequency", "monthly", "once|weekly|biweekly|twicemonthly|monthly|bimonthly|quarterly|yearly")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	autoPay := fs.Bool("autopay", false, "Enable auto-pay")
	category := fs.String("category", "", "Category ID")
	fs.Parse(os.Args[2:])

	if *title == "" || *amount <= 0 || *due == "" {
		log.Fatal().Msg("Error: --title, --amount and --due are required")
	}
	freq, err := domain.ParseFrequency(*frequency)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid frequency")
	}
	dueDate, err := time.Parse(time.DateOnly, *due)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid due date")
	}

	st := openStore(log)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bill := &domain.Bill{
		Title:      *title,
		Amount:     *amount,
		Frequency:  freq,
		DueDate:    dueDate,
		Status:     domain.StatusPending,
		AutoPay:    *autoPay,
		CategoryID: *category,
	}
	if err := st.CreateBill(ctx, bill); err != nil {
		log.Fatal().Err(err).Msg("Failed to create bill")
	}
	fmt.Printf("Created bill %s\n", bill.ID)
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status")
	tag := fs.String("tag", "", "Filter by tag")
	archived := fs.Bool("archived", false, "Include archived bills")
	fs.Parse(os.Args[2:])

	st := openStore(log)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bills, err := st.ListBills(ctx, store.BillFilter{
		Status:          domain.Status(*status),
		Tag:             *tag,
		IncludeArchived: *archived,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list bills")
	}

	for _, b := range bills {
		fmt.Printf("%s  %-24s %10s  %-12s %-8s due %s\n",
			b.ID, b.Title, formatAmount(b.Amount), b.Frequency, b.Status,
			cycle.Day(b.DueDate).Format(time.DateOnly))
	}
	fmt.Printf("%d bill(s)\n", len(bills))
}

func runPay(log zerolog.Logger) {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	billID := fs.String("bill", "", "Bill ID")
	amount := fs.Int64("amount", 0, "Amount paid in minor units (defaults to the bill amount)")
	paidAt := fs.String("date", "", "Payment date (YYYY-MM-DD, defaults to today)")
	notes := fs.String("notes", "", "Payment notes")
	fs.Parse(os.Args[2:])

	if *billID == "" {
		log.Fatal().Msg("Error: --bill is required")
	}

	st := openStore(log)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bill, err := st.GetBill(ctx, *billID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bill")
	}

	when := time.Now().UTC()
	if *paidAt != "" {
		when, err = time.Parse(time.DateOnly, *paidAt)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid payment date")
		}
	}
	paid := *amount
	if paid == 0 {
		paid = bill.Amount
	}

	eng := engine.New(st, engine.Options{Clock: clock.NewReal(), Logger: log})
	result, err := eng.RecordPayment(ctx, *billID, paid, when, *notes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to record payment")
	}
	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("Error draining notifications")
	}

	if result.Historical {
		fmt.Printf("Recorded historical payment %s (cycle unchanged)\n", result.TransactionID)
	} else {
		fmt.Printf("Recorded payment %s\n", result.TransactionID)
	}
}

func runForecast(log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	from := fs.String("from", "", "Window start (YYYY-MM-DD, defaults to today)")
	days := fs.Int("days", 30, "Window length in days")
	amortize := fs.Bool("amortize", false, "Show per-month amortized amounts")
	archived := fs.Bool("archived", false, "Include archived bills")
	fs.Parse(os.Args[2:])

	start := time.Now().UTC()
	if *from != "" {
		var err error
		start, err = time.Parse(time.DateOnly, *from)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid start date")
		}
	}
	end := start.AddDate(0, 0, *days)

	st := openStore(log)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bills, err := st.ListBills(ctx, store.BillFilter{IncludeArchived: *archived})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list bills")
	}

	p := forecast.Project(bills, start, end, forecast.Options{
		IncludeArchived: *archived,
		Amortize:        *amortize,
	})

	for _, occ := range p.Occurrences {
		line := fmt.Sprintf("%s  %-24s %10s", occ.DueDate.Format(time.DateOnly), occ.Title, formatAmount(occ.Amount))
		if *amortize {
			line += fmt.Sprintf("  (%s/mo)", formatAmount(occ.AmortizedAmount))
		}
		fmt.Println(line)
	}
	fmt.Printf("%d occurrence(s), total %s\n", p.Summary.Count, formatAmount(p.Summary.TotalAmount))
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
