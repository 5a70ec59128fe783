// Package expense implements the bookkeeping skills on an append-only
// ledger partitioned by calendar month.
package expense

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoPartition is returned when a monthly partition does not exist.
	ErrNoPartition = errors.New("partition not found")
	// ErrNoTemplate is returned when the template partition is missing.
	ErrNoTemplate = errors.New("template partition missing")
)

// Columns is the header row of every partition.
var Columns = []string{"Date", "Category", "Item", "Amount", "Project", "Payer", "Note", "RecordedAt"}

// Record is one ledger line.
type Record struct {
	Date       time.Time
	Category   string
	Item       string
	Amount     int
	Project    string
	Payer      string
	Note       string
	RecordedAt time.Time
}

// Cells returns the record in column order.
func (r Record) Cells() []string {
	return []string{
		r.Date.Format(time.DateOnly),
		r.Category,
		r.Item,
		strconv.Itoa(r.Amount),
		r.Project,
		r.Payer,
		r.Note,
		r.RecordedAt.Format(time.DateTime),
	}
}

// Row is a stored line keyed by column name.
type Row map[string]string

// Amount returns the row's amount with currency symbols and separators
// removed. Unreadable cells count as zero.
func (r Row) Amount() int {
	var b strings.Builder
	for _, c := range r["Amount"] {
		if (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// Ledger stores records in monthly partitions.
type Ledger interface {
	// Append adds rec to partition, creating it from the template first
	// if it does not exist.
	Append(ctx context.Context, partition string, rec Record) error
	// Rows returns every row of partition, or ErrNoPartition.
	Rows(ctx context.Context, partition string) ([]Row, error)
}

var partitionPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// PartitionOf returns the partition name for t.
func PartitionOf(t time.Time) string {
	return t.Format("2006-01")
}

func checkPartition(name string) error {
	if !partitionPattern.MatchString(name) {
		return fmt.Errorf("invalid partition name %q", name)
	}
	return nil
}

// partitionsBetween lists the months from start to end inclusive.
func partitionsBetween(start, end time.Time) []string {
	var out []string
	y, m, _ := start.Date()
	cur := time.Date(y, m, 1, 0, 0, 0, 0, start.Location())
	for !cur.After(end) {
		out = append(out, PartitionOf(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}
