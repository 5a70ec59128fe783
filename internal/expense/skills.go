package expense

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/youmna-rabie/line-assistant/internal/skill"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

// Skill names.
const (
	SkillAdd   = "add_expense"
	SkillQuery = "query_expenses"
)

// Defaults for fields the model leaves out.
const (
	DefaultCategory = "Other"
	DefaultItem     = "Untitled"
)

// Skills returns the expense skill table.
func Skills(svc *Service) skill.Table {
	return skill.NewTable(&addSkill{svc}, &querySkill{svc})
}

// Added describes a recorded expense.
type Added struct {
	Record    Record
	Partition string
}

// Bucket is one line of a query breakdown.
type Bucket struct {
	Key    string
	Amount int
}

// Summary is the answer to an expense query.
type Summary struct {
	Start, End  time.Time
	FilterValue string
	Rows        int
	Total       int
	Breakdown   []Bucket
}

func money(n int) string {
	return "$" + humanize.Comma(int64(n))
}

func backendOutcome(err error) skill.Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return skill.Broken(err)
	}
	return skill.Failed(err.Error(), nil)
}

func dateArg(args skill.Args, key string, def time.Time, loc *time.Location) (time.Time, error) {
	s, err := args.OptString(key, "")
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		if def.IsZero() {
			return time.Time{}, &skill.ParamError{Field: key, Reason: "is required"}
		}
		return def, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, &skill.ParamError{Field: key, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return t, nil
}

type addSkill struct{ svc *Service }

func (s *addSkill) Name() string { return SkillAdd }

func (s *addSkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	rec, err := s.record(args)
	if err != nil {
		return skill.BadParams(err)
	}
	partition, err := s.svc.Add(ctx, rec)
	if err != nil {
		return backendOutcome(err)
	}
	return skill.Succeeded(Added{Record: rec, Partition: partition})
}

func (s *addSkill) record(args skill.Args) (Record, error) {
	amount, err := args.Int("amount")
	if err != nil {
		return Record{}, err
	}
	if amount <= 0 {
		return Record{}, &skill.ParamError{Field: "amount", Reason: "must be positive"}
	}
	date, err := dateArg(args, "date", s.svc.Today(), s.svc.loc)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Date: date, Amount: amount}
	fields := []struct {
		key string
		def string
		dst *string
	}{
		{"category", DefaultCategory, &rec.Category},
		{"item", DefaultItem, &rec.Item},
		{"project", "", &rec.Project},
		{"payer", "", &rec.Payer},
		{"note", "", &rec.Note},
	}
	for _, f := range fields {
		v, err := args.OptString(f.key, f.def)
		if err != nil {
			return Record{}, err
		}
		*f.dst = v
	}
	return rec, nil
}

func (s *addSkill) Present(res skill.Result) []types.Message {
	if !res.Success {
		return []types.Message{types.TextMessage("💥 Recording failed: " + res.Message)}
	}
	a := res.Data.(Added)
	project := ""
	if a.Record.Project != "" {
		project = " (🏷️" + a.Record.Project + ")"
	}
	text := fmt.Sprintf("✅ Recorded!\n📅 %s\n📝 %s %s\n📂 %s%s\n---------------",
		a.Record.Date.Format(time.DateOnly), a.Record.Item, money(a.Record.Amount), a.Record.Category, project)
	return []types.Message{types.TextMessage(text)}
}

type querySkill struct{ svc *Service }

func (s *querySkill) Name() string { return SkillQuery }

func (s *querySkill) Execute(ctx context.Context, args skill.Args) skill.Outcome {
	start, err := dateArg(args, "start_date", time.Time{}, s.svc.loc)
	if err != nil {
		return skill.BadParams(err)
	}
	end, err := dateArg(args, "end_date", start, s.svc.loc)
	if err != nil {
		return skill.BadParams(err)
	}
	if end.Before(start) {
		return skill.BadParams(&skill.ParamError{Field: "end_date", Reason: "is before start_date"})
	}
	column, err := args.OptString("filter_column", "")
	if err != nil {
		return skill.BadParams(err)
	}
	value, err := args.OptString("filter_value", "")
	if err != nil {
		return skill.BadParams(err)
	}
	if column != "" && column != "Category" && column != "Project" {
		return skill.BadParams(&skill.ParamError{Field: "filter_column", Reason: "must be Category or Project"})
	}

	rows, err := s.svc.Query(ctx, start, end)
	if err != nil {
		return backendOutcome(err)
	}
	return skill.Succeeded(summarize(rows, start, end, column, value))
}

// summarize filters rows and totals them. With a filter, rows match when
// the column equals one of the comma-separated values. The breakdown is
// by Category, or by Item when filtering on Category.
func summarize(rows []Row, start, end time.Time, column, value string) Summary {
	sum := Summary{Start: start, End: end}
	if column != "" && value != "" {
		sum.FilterValue = value
		wanted := map[string]bool{}
		for _, v := range strings.Split(value, ",") {
			wanted[strings.TrimSpace(v)] = true
		}
		var kept []Row
		for _, row := range rows {
			if wanted[strings.TrimSpace(row[column])] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	groupBy := "Category"
	if column == "Category" && value != "" {
		groupBy = "Item"
	}
	totals := map[string]int{}
	for _, row := range rows {
		amt := row.Amount()
		sum.Total += amt
		key := row[groupBy]
		if key == "" {
			key = DefaultCategory
		}
		totals[key] += amt
	}
	sum.Rows = len(rows)

	for k, v := range totals {
		sum.Breakdown = append(sum.Breakdown, Bucket{Key: k, Amount: v})
	}
	sort.Slice(sum.Breakdown, func(i, j int) bool {
		if sum.Breakdown[i].Amount != sum.Breakdown[j].Amount {
			return sum.Breakdown[i].Amount > sum.Breakdown[j].Amount
		}
		return sum.Breakdown[i].Key < sum.Breakdown[j].Key
	})
	return sum
}

func (s *querySkill) Present(res skill.Result) []types.Message {
	if !res.Success {
		return []types.Message{types.TextMessage("💥 Query failed: " + res.Message)}
	}
	sum := res.Data.(Summary)
	period := sum.Start.Format(time.DateOnly) + " ~ " + sum.End.Format(time.DateOnly)

	if sum.Rows == 0 {
		if sum.FilterValue != "" {
			return []types.Message{types.TextMessage(fmt.Sprintf("🔍 No records matching %s between %s.", sum.FilterValue, period))}
		}
		return []types.Message{types.TextMessage(fmt.Sprintf("🔍 No expenses found between %s.", period))}
	}

	title := "Total spending"
	if sum.FilterValue != "" {
		title = "[" + sum.FilterValue + "]"
	}
	lines := make([]string, 0, len(sum.Breakdown))
	for _, b := range sum.Breakdown {
		lines = append(lines, fmt.Sprintf("▫️ %s: %s", b.Key, money(b.Amount)))
	}
	text := fmt.Sprintf("📊 %s summary\n📅 Period: %s\n💰 Total: %s\n------------------\n%s",
		title, period, money(sum.Total), strings.Join(lines, "\n"))
	return []types.Message{types.TextMessage(text)}
}
