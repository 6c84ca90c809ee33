package numbering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a numbered document family.
type Kind string

const (
	KindSalesOrder    Kind = "SO"
	KindPurchaseOrder Kind = "PO"
	KindPayment       Kind = "PAY"
	KindJournalEntry  Kind = "JE"
)

// Valid reports whether k is a known document kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSalesOrder, KindPurchaseOrder, KindPayment, KindJournalEntry:
		return true
	}
	return false
}

// ErrMalformedNumber indicates a number that does not follow {prefix}-{year}-{counter}.
var ErrMalformedNumber = errors.New("numbering: malformed document number")

// ErrUnknownKind indicates an unsupported document kind.
var ErrUnknownKind = errors.New("numbering: unknown document kind")

// Format renders a document number. Counters below 10000 are zero padded to
// four digits; larger counters widen.
func Format(kind Kind, year, counter int) string {
	return fmt.Sprintf("%s-%d-%04d", kind, year, counter)
}

// Parse splits a document number into its parts.
func Parse(number string) (Kind, int, int, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, ErrMalformedNumber
	}
	kind := Kind(parts[0])
	if !kind.Valid() {
		return "", 0, 0, ErrMalformedNumber
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return "", 0, 0, ErrMalformedNumber
	}
	counter, err := parseCounter(parts[2])
	if err != nil {
		return "", 0, 0, err
	}
	return kind, year, counter, nil
}

func parseCounter(s string) (int, error) {
	if s == "" {
		return 0, ErrMalformedNumber
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformedNumber
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, ErrMalformedNumber
	}
	return n, nil
}

// MaxCounter returns the highest counter among numbers carrying the
// {kind}-{year}- prefix. Numbers whose suffix does not parse are ignored.
func MaxCounter(kind Kind, year int, numbers []string) int {
	prefix := fmt.Sprintf("%s-%d-", kind, year)
	max := 0
	for _, n := range numbers {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		counter, err := parseCounter(strings.TrimPrefix(n, prefix))
		if err != nil {
			continue
		}
		if counter > max {
			max = counter
		}
	}
	return max
}
