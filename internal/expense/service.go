package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service records and queries expenses.
type Service struct {
	ledger Ledger
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates an expense service.
func NewService(ledger Ledger, loc *time.Location, logger *slog.Logger) *Service {
	return &Service{ledger: ledger, loc: loc, now: time.Now, logger: logger}
}

// Today returns the current date in the service's timezone.
func (s *Service) Today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// Add appends rec to the partition for its date and returns that
// partition's name.
func (s *Service) Add(ctx context.Context, rec Record) (string, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now().In(s.loc)
	}
	partition := PartitionOf(rec.Date)
	if err := s.ledger.Append(ctx, partition, rec); err != nil {
		return "", err
	}
	s.logger.Info("expense recorded", "partition", partition, "item", rec.Item, "amount", rec.Amount)
	return partition, nil
}

// Query returns rows dated between start and end inclusive, across every
// monthly partition in range. Missing partitions are skipped.
func (s *Service) Query(ctx context.Context, start, end time.Time) ([]Row, error) {
	lo, hi := start.Format(time.DateOnly), end.Format(time.DateOnly)

	var out []Row
	for _, partition := range partitionsBetween(start, end) {
		rows, err := s.ledger.Rows(ctx, partition)
		if errors.Is(err, ErrNoPartition) {
			s.logger.Debug("partition missing", "partition", partition)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", partition, err)
		}
		for _, row := range rows {
			d := row["Date"]
			if d != "" && lo <= d && d <= hi {
				out = append(out, row)
			}
		}
	}
	return out, nil
}
