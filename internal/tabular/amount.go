package tabular

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var errAmountRange = errors.New("amount out of range")

var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseAmount reads a monetary cell. ok is false for an empty cell. Spaces and
// comma thousands separators are ignored; any other comma, such as a decimal
// comma in "100,50", is an error.
func ParseAmount(raw string) (value float64, ok bool, err error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return 0, false, nil
	}
	if strings.Contains(s, ",") {
		if !thousandsGrouped.MatchString(s) {
			return 0, false, fmt.Errorf("ambiguous comma in amount %q", raw)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, err
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, false, errAmountRange
	}
	return f, true, nil
}

// FormatAmount renders v as the shortest decimal string that reads back as v.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// FormatMoney renders v with two decimals for summaries.
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
