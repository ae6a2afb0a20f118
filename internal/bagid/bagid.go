// Package bagid formats and parses cement bag identifiers of the form
// CEM-{plant}-{yyyyMMdd}-{batch}-{seq:05d}.
package bagid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Namespace  = "CEM"
	DateLayout = "20060102"
	seqWidth   = 5
)

// Generate builds the identifier for one bag. date is taken as given; callers
// convert it to the ledger time zone first.
func Generate(plant, batch string, seq int, date time.Time) string {
	return fmt.Sprintf("%s%0*d", Prefix(plant, date, batch), seqWidth, seq)
}

// Prefix is the identifier up to and including the dash before the sequence.
func Prefix(plant string, date time.Time, batch string) string {
	return fmt.Sprintf("%s-%s-%s-%s-", Namespace, plant, date.Format(DateLayout), batch)
}

// Sequence extracts the trailing sequence number of id when id starts with
// prefix. Sequences wider than five digits are accepted.
func Sequence(id, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return seq, true
}
