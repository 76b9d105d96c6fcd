// Command generate writes a deterministic pair of dividend booking files for
// local runs: a semicolon-delimited owner file and a comma-delimited,
// BOM-prefixed custodian file.
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/divrecon/internal/currency"
)

type event struct {
	key       string
	isin      string
	sedol     string
	ticker    string
	name      string
	quote     string
	settle    string
	dps       decimal.Decimal
	exDate    time.Time
	payDate   time.Time
	holding   int64
	loan      int64
	taxRate   decimal.Decimal
	fx        decimal.Decimal
	account   string
	custodian string
}

var issuers = []struct {
	isin, sedol, ticker, name, quote string
}{
	{"US0378331005", "2046251", "AAPL", "Apple Inc", "USD"},
	{"US5949181045", "2588173", "MSFT", "Microsoft Corp", "USD"},
	{"GB0007980591", "0798059", "BP", "BP Plc", "GBP"},
	{"CH0038863350", "7123870", "NESN", "Nestle SA", "CHF"},
	{"JP3633400001", "6900643", "7203", "Toyota Motor Corp", "JPY"},
	{"DE0007164600", "4846288", "SAP", "SAP SE", "EUR"},
	{"NO0010096985", "7133608", "EQNR", "Equinor ASA", "NOK"},
	{"KR7005930003", "6771720", "005930", "Samsung Electronics", "KRW"},
}

var taxRates = map[string]string{
	"USD": "15", "GBP": "0", "CHF": "35", "JPY": "15",
	"EUR": "26.375", "NOK": "0", "KRW": "22",
}

var fxToNOK = map[string]string{
	"USD": "10.45", "GBP": "13.20", "CHF": "11.80", "JPY": "0.071",
	"EUR": "11.55", "NOK": "1", "KRW": "0.0078",
}

func main() {
	rng := rand.New(rand.NewSource(42))
	dir := "data"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []event
	for i, iss := range issuers {
		ex := start.AddDate(0, 0, rng.Intn(60))
		settle := "NOK"
		if i%3 == 0 {
			settle = iss.quote
		}
		holding := int64(10000 + rng.Intn(90000))
		var loan int64
		if i%4 == 1 {
			loan = holding / 10
		}
		events = append(events, event{
			key:       fmt.Sprintf("%09d", 950000000+i*1337),
			isin:      iss.isin,
			sedol:     iss.sedol,
			ticker:    iss.ticker,
			name:      iss.name,
			quote:     iss.quote,
			settle:    settle,
			dps:       decimal.NewFromFloat(0.1 + rng.Float64()*3).Round(4),
			exDate:    ex,
			payDate:   ex.AddDate(0, 0, 14+rng.Intn(14)),
			holding:   holding,
			loan:      loan,
			taxRate:   decimal.RequireFromString(taxRates[iss.quote]),
			fx:        decimal.RequireFromString(fxToNOK[iss.quote]),
			account:   fmt.Sprintf("%d", 501100000+rng.Intn(99999)),
			custodian: "CUST/" + iss.ticker,
		})
	}

	owner := writeOwner(filepath.Join(dir, "NBIM_Dividend_Bookings.csv"), events)
	custodian := writeCustodian(rng, filepath.Join(dir, "CUSTODY_Dividend_Bookings.csv"), events)
	fmt.Printf("Generated %d owner and %d custodian bookings in %s\n", owner, custodian, dir)
}

func (e event) amounts(holding int64) (gross, tax, netQuote, netSettle decimal.Decimal) {
	gross = e.dps.Mul(decimal.NewFromInt(holding)).Round(2)
	tax = gross.Mul(e.taxRate).Div(decimal.NewFromInt(100)).Round(2)
	netQuote = gross.Sub(tax)
	netSettle = netQuote
	if e.settle != e.quote {
		netSettle = netQuote.Mul(e.fx).Round(2)
	}
	return gross, tax, netQuote, netSettle
}

func writeOwner(path string, events []event) int {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	w.Write([]string{
		"COAC_EVENT_KEY", "INSTRUMENT_DESCRIPTION", "TICKER", "ISIN", "SEDOL",
		"EXDATE", "PAYMENT_DATE", "DIVIDENDS_PER_SHARE", "QUOTATION_CURRENCY",
		"SETTLEMENT_CURRENCY", "NOMINAL_BASIS", "GROSS_AMOUNT_QUOTATION",
		"NET_AMOUNT_QUOTATION", "NET_AMOUNT_SETTLEMENT", "WTHTAX_COST_QUOTATION",
		"TOTAL_TAX_RATE", "BANK_ACCOUNT", "CUSTODIAN",
	})

	count := 0
	for i, e := range events {
		// The last event is booked by the owner only.
		if i == len(events)-1 {
			continue
		}
		// Lent shares are split into a second booking line.
		lines := []int64{e.holding}
		if e.loan > 0 {
			lines = []int64{e.holding - e.loan, e.loan}
		}
		for _, h := range lines {
			gross, tax, nq, ns := e.amounts(h)
			w.Write([]string{
				e.key, e.name, e.ticker, e.isin, e.sedol,
				e.exDate.Format("02.01.2006"), e.payDate.Format("02.01.2006"),
				e.dps.String(), e.quote, e.settle, fmt.Sprintf("%d", h),
				gross.StringFixed(2), nq.StringFixed(2), ns.StringFixed(2), tax.StringFixed(2),
				e.taxRate.String(), e.account, e.custodian,
			})
			count++
		}
	}
	return count
}

func writeCustodian(rng *rand.Rand, path string, events []event) int {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if _, err := f.WriteString("\ufeff"); err != nil {
		panic(err)
	}
	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"EVENT_KEY", "ISIN", "SEDOL", "ISSUER_NAME", "EX_DATE", "PAY_DATE",
		"DIV_RATE", "CURRENCIES", "HOLDING_QUANTITY", "LOAN_QUANTITY",
		"GROSS_AMOUNT", "NET_AMOUNT_QC", "NET_AMOUNT_SC", "TAX", "TAX_RATE",
		"BANK_ACCOUNTS", "CUSTODIAN",
	})

	count := 0
	for i, e := range events[:len(events)-1] {
		gross, tax, nq, ns := e.amounts(e.holding)
		taxCell := tax.StringFixed(2)

		switch i % 4 {
		case 1:
			// Withholding at the wrong rate.
			rate := e.taxRate.Add(decimal.NewFromInt(int64(5 + rng.Intn(10))))
			tax = gross.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
			nq = gross.Sub(tax)
			taxCell = tax.StringFixed(2)
		case 2:
			// Tax left blank, to be backfilled from the owner side.
			taxCell = ""
		}

		w.Write([]string{
			e.key, e.isin, e.sedol, e.name,
			e.exDate.Format("2006-01-02"), e.payDate.Format("2006-01-02"),
			e.dps.String(), currency.Combine(e.quote, e.settle),
			fmt.Sprintf("%d", e.holding), fmt.Sprintf("%d", e.loan),
			gross.StringFixed(2), nq.StringFixed(2), ns.StringFixed(2), taxCell,
			e.taxRate.String(), e.account, e.custodian,
		})
		count++
	}

	// An event the owner never booked.
	w.Write([]string{
		"960000001", "FR0000120271", "B15C557", "TotalEnergies SE", "2024-04-02", "2024-04-20",
		"0.79", currency.Combine("EUR", "NOK"), "25000", "0",
		"19750.00", "14541.88", "167958.71", "5208.13", "26.37",
		"501177777", "CUST/TTE",
	})
	return count + 1
}
