package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finapi/pkg/analytics"
	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
)

func main() {
	email := flag.String("email", "", "email of the user to report for")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list the month's transactions")
	flag.Parse()
	if *email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		os.Exit(2)
	}
	period, err := time.Parse("2006-01", *month)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --month %q: want YYYY-MM\n", *month)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Err(ctx, "open store", err)
		os.Exit(1)
	}
	defer st.Close()

	u, err := st.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		log.Err(ctx, "find user", err, "email", *email)
		os.Exit(1)
	}
	m, err := analytics.NewService(st, log).Monthly(ctx, u.ID, period.Year(), int(period.Month()))
	if err != nil {
		log.Err(ctx, "monthly report", err)
		os.Exit(1)
	}

	fmt.Printf("Report for %s, %s\n", u.Email, period.Format("January 2006"))
	fmt.Printf("  income:       %s\n", m.Summary.TotalIncome.StringFixed(2))
	fmt.Printf("  expense:      %s\n", m.Summary.TotalExpense.StringFixed(2))
	fmt.Printf("  balance:      %s\n", m.Summary.Balance.StringFixed(2))
	fmt.Printf("  savings rate: %.2f%%\n", m.Summary.SavingsRate)
	fmt.Printf("  transactions: %d\n", m.Summary.TransactionCount)
	if m.Alerts.OverBudget || m.Alerts.LowSavings || m.Alerts.HighExpense {
		fmt.Printf("  alerts:       over_budget=%v low_savings=%v high_expense=%v\n", m.Alerts.OverBudget, m.Alerts.LowSavings, m.Alerts.HighExpense)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nEXPENSE CATEGORY\tAMOUNT\tCOUNT")
	for _, c := range m.ExpensesByCategory {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Amount.StringFixed(2), c.Count)
	}
	_ = w.Flush()

	if !*list {
		return
	}
	start, end := analytics.MonthWindow(period.Year(), period.Month())
	txs, err := st.TransactionsBetween(ctx, u.ID, start, end)
	if err != nil {
		log.Err(ctx, "list transactions", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, "\nDATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, t := range txs {
		cat, desc := "", ""
		if t.Category != nil {
			cat = t.Category.Name
		}
		if t.Description != nil {
			desc = *t.Description
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Date.Format("2006-01-02"), t.Type, t.Amount.StringFixed(2), cat, desc)
	}
	_ = w.Flush()
}
