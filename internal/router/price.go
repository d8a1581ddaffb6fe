package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var priceTag = regexp.MustCompile(`(?i)(?:^|[\s,;|])price:(\S*)`)

// ParsePrice extracts the `price:<integer>` annotation from a profile comment.
// A missing, malformed, zero or negative price yields zero, meaning the plan
// is not billable.
func ParsePrice(comment string) decimal.Decimal {
	m := priceTag.FindStringSubmatch(comment)
	if m == nil {
		return decimal.Zero
	}
	raw := strings.TrimRight(m[1], ",;|")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(n)
}
