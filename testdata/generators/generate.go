// Command generate writes paired transactions and receipts CSV exports for
// exercising the previa CLI on realistic volumes.
//
//	go run ./testdata/generators -count 500 -output-dir ./testdata/generated
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scenario controls how a receipt relates to the transaction it documents
type Scenario string

const (
	ScenarioExact      Scenario = "exact"
	ScenarioSettlement Scenario = "settlement"
	ScenarioSurcharge  Scenario = "surcharge"
	ScenarioVariant    Scenario = "variant"
	ScenarioNoReceipt  Scenario = "no-receipt"
	ScenarioOrphan     Scenario = "orphan"
	ScenarioPending    Scenario = "pending"
)

// scenarioMix is the share of generated rows per scenario
var scenarioMix = []struct {
	scenario Scenario
	weight   int
}{
	{ScenarioExact, 30},
	{ScenarioSettlement, 20},
	{ScenarioSurcharge, 10},
	{ScenarioVariant, 15},
	{ScenarioNoReceipt, 15},
	{ScenarioOrphan, 5},
	{ScenarioPending, 5},
}

var merchants = []struct {
	statement string
	receipt   string
}{
	{"WOOLWORTHS METRO 1234 SYDNEY", "Woolworths Metro"},
	{"COLES EXPRESS 0042", "Coles Express"},
	{"SQ *BLUE BOTTLE COFFEE", "Blue Bottle Coffee"},
	{"BUNNINGS WAREHOUSE", "Bunnings"},
	{"UBER *TRIP HELP.UBER.COM", "Uber"},
	{"OFFICEWORKS 0311", "Officeworks"},
	{"KMART AUSTRALIA", "Kmart"},
	{"JB HI-FI ONLINE", "JB Hi-Fi"},
}

// Generator produces matching transaction and receipt rows
type Generator struct {
	Count     int
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	rng *rand.Rand
}

type transactionRow struct {
	ID          string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}

type receiptRow struct {
	ID       string
	Date     time.Time
	Merchant string
	Amount   decimal.Decimal
	Status   string
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "directory for transactions.csv and receipts.csv")
		count     = flag.Int("count", 200, "number of scenario rows to generate")
		userID    = flag.String("user-id", "u-demo", "user ID stamped on every row")
		startDate = flag.String("start-date", "2025-01-01", "start date (YYYY-MM-DD)")
		endDate   = flag.String("end-date", "2025-03-31", "end date (YYYY-MM-DD)")
		minAmount = flag.String("min-amount", "2.50", "minimum purchase amount")
		maxAmount = flag.String("max-amount", "350.00", "maximum purchase amount")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if !end.After(start) {
		log.Fatalf("End date must be after start date")
	}

	generator := &Generator{
		Count:     *count,
		UserID:    *userID,
		StartDate: start,
		EndDate:   end,
		MinAmount: decimal.RequireFromString(*minAmount),
		MaxAmount: decimal.RequireFromString(*maxAmount),
		rng:       rand.New(rand.NewSource(*seed)),
	}

	transactions, receipts, counts := generator.Generate()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := generator.writeTransactions(filepath.Join(*outputDir, "transactions.csv"), transactions); err != nil {
		log.Fatalf("Failed to write transactions: %v", err)
	}
	if err := generator.writeReceipts(filepath.Join(*outputDir, "receipts.csv"), receipts); err != nil {
		log.Fatalf("Failed to write receipts: %v", err)
	}

	fmt.Printf("Generated %d transactions and %d receipts in %s\n", len(transactions), len(receipts), *outputDir)
	for _, mix := range scenarioMix {
		fmt.Printf("  %-11s %d\n", mix.scenario, counts[mix.scenario])
	}
	fmt.Printf("Seed used: %d\n", *seed)
}

// Generate draws Count scenarios and returns the rows they produce
func (g *Generator) Generate() ([]transactionRow, []receiptRow, map[Scenario]int) {
	var (
		transactions []transactionRow
		receipts     []receiptRow
	)
	counts := make(map[Scenario]int, len(scenarioMix))

	for i := 0; i < g.Count; i++ {
		scenario := g.pickScenario()
		counts[scenario]++

		merchant := merchants[g.rng.Intn(len(merchants))]
		date := g.randomDate()
		amount := g.randomAmount()

		tx := transactionRow{
			ID:          fmt.Sprintf("tx-%06d", i+1),
			Date:        date,
			Description: merchant.statement,
			Amount:      amount.Neg(),
		}
		receipt := receiptRow{
			ID:       fmt.Sprintf("r-%06d", i+1),
			Date:     date,
			Merchant: merchant.receipt,
			Amount:   amount,
			Status:   "completed",
		}

		switch scenario {
		case ScenarioSettlement:
			// receipt dated at purchase, bank posts one to three days later
			receipt.Date = date.AddDate(0, 0, -(1 + g.rng.Intn(3)))
		case ScenarioSurcharge:
			cents := decimal.New(int64(1+g.rng.Intn(49)), -2)
			tx.Amount = amount.Add(cents).Neg()
		case ScenarioVariant:
			receipt.Merchant = strings.ToUpper(merchant.receipt) + " PTY LTD"
		case ScenarioPending:
			receipt.Status = "pending"
		}

		if scenario != ScenarioOrphan {
			transactions = append(transactions, tx)
		}
		if scenario != ScenarioNoReceipt {
			receipts = append(receipts, receipt)
		}
	}

	return transactions, receipts, counts
}

func (g *Generator) pickScenario() Scenario {
	total := 0
	for _, mix := range scenarioMix {
		total += mix.weight
	}
	n := g.rng.Intn(total)
	for _, mix := range scenarioMix {
		if n < mix.weight {
			return mix.scenario
		}
		n -= mix.weight
	}
	return ScenarioExact
}

func (g *Generator) randomDate() time.Time {
	days := int(g.EndDate.Sub(g.StartDate) / (24 * time.Hour))
	return g.StartDate.AddDate(0, 0, g.rng.Intn(days+1))
}

func (g *Generator) randomAmount() decimal.Decimal {
	amountRange := g.MaxAmount.Sub(g.MinAmount)
	return decimal.NewFromFloat(g.rng.Float64()).Mul(amountRange).Add(g.MinAmount).Round(2)
}

func (g *Generator) writeTransactions(path string, rows []transactionRow) error {
	records := [][]string{{"id", "user_id", "date", "description", "amount", "status"}}
	for _, tx := range rows {
		records = append(records, []string{
			tx.ID, g.UserID, tx.Date.Format("2006-01-02"), tx.Description, tx.Amount.StringFixed(2), "unreconciled",
		})
	}
	return writeCSV(path, records)
}

func (g *Generator) writeReceipts(path string, rows []receiptRow) error {
	records := [][]string{{"id", "user_id", "file_path", "receipt_date", "merchant_name", "amount", "processing_status", "file_size"}}
	for _, r := range rows {
		records = append(records, []string{
			r.ID, g.UserID, "receipts/" + r.ID + ".jpg", r.Date.Format("2006-01-02"), r.Merchant,
			r.Amount.StringFixed(2), r.Status, strconv.Itoa(20000 + g.rng.Intn(400000)),
		})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return file.Sync()
}
