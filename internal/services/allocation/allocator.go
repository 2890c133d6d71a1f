// Package allocation places collected payments against the instalments of a
// loan submission.
//
// Collected rows are processed in table order. Each row's amount is pushed
// first into submission rows sharing its identity number and then, if funds
// remain, into rows sharing its employee number, both in submission order and
// never beyond a row's instalment amount. Whatever is still left becomes
// leftover. The result is deterministic for a given pair of tables.
package allocation

import (
	"errors"
	"fmt"
	"math"

	"loan-allocation-backend/internal/services/matching"
	"loan-allocation-backend/internal/tabular"
)

// DefaultTolerance absorbs floating point drift in zero and total comparisons.
const DefaultTolerance = 1e-6

// Pass tells which key matched an allocation.
type Pass string

const (
	PassID       Pass = "id"
	PassEmployee Pass = "employee"
)

const (
	ReasonNoMatch           = "no_match"
	ReasonCapacityExhausted = "capacity_exhausted"
)

// Allocation is one transfer from a collected row into a submission row.
// Row numbers are 1-based and exclude the header.
// IDNumber and EmployeeNumber are the collected row's normalised keys.
type Allocation struct {
	CollectedRow   int
	SubmissionRow  int
	Pass           Pass
	IDNumber       string
	EmployeeNumber string
	Amount         float64
	PaidAfter      float64
	DiffAfter      float64
}

// Unallocated is the part of a collected row no submission row could absorb.
type Unallocated struct {
	CollectedRow   int
	IDNumber       string
	EmployeeNumber string
	Amount         float64
	Reason         string
}

type Result struct {
	// Records is the number of collected rows processed.
	Records        int
	SubmissionRows int
	TotalCollected float64
	// OpeningPaid is the submission PAID total before allocation.
	OpeningPaid float64
	// TotalPaid is the submission PAID total after allocation.
	TotalPaid float64
	// Allocated is TotalPaid - OpeningPaid.
	Allocated   float64
	Leftover    float64
	Allocations []Allocation
	Unallocated []Unallocated
}

// Summary renders the one-line report shown after a run.
func (r *Result) Summary() string {
	return fmt.Sprintf("Processed %d records. Total paid: %s. Leftover: %s",
		r.Records, tabular.FormatMoney(r.TotalPaid), tabular.FormatMoney(r.Leftover))
}

type Option func(*Allocator)

func WithColumns(c Columns) Option {
	return func(a *Allocator) {
		a.columns = c.withDefaults()
	}
}

func WithTolerance(tol float64) Option {
	return func(a *Allocator) {
		if tol > 0 {
			a.tolerance = tol
		}
	}
}

// WithProgress registers a callback receiving the completed fraction after
// every collected row. Values never decrease and the last one is 1.
func WithProgress(fn func(fraction float64)) Option {
	return func(a *Allocator) {
		a.progress = fn
	}
}

type Allocator struct {
	columns   Columns
	tolerance float64
	progress  func(float64)
}

func New(opts ...Option) *Allocator {
	a := &Allocator{
		columns:   DefaultColumns(),
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate runs an allocator with default settings.
func Allocate(submission, collected *tabular.Table) (*tabular.Table, *Result, error) {
	return New().Allocate(submission, collected)
}

type submissionRecord struct {
	id         string
	employee   string
	instalment float64
	paid       float64
}

type collectedRecord struct {
	id       string
	employee string
	amount   float64
}

// Allocate returns a copy of submission with PAID and DIFF filled in, plus the
// allocation statistics. The input tables are not modified. Any error aborts
// the whole call.
func (a *Allocator) Allocate(submission, collected *tabular.Table) (*tabular.Table, *Result, error) {
	cols := a.columns
	subIdx, subErr := requireColumns("submission", submission, cols.IDNumber, cols.EmployeeNumber, cols.InstalmentAmount)
	colIdx, colErr := requireColumns("collected", collected, cols.IDNumber, cols.EmployeeNumber, cols.Paid)
	switch {
	case subErr != nil && colErr != nil:
		return nil, nil, errors.Join(subErr, colErr)
	case subErr != nil:
		return nil, nil, subErr
	case colErr != nil:
		return nil, nil, colErr
	}

	subs, err := a.loadSubmission(submission, subIdx)
	if err != nil {
		return nil, nil, err
	}
	pays, err := a.loadCollected(collected, colIdx)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Records: len(pays), SubmissionRows: len(subs)}
	ids := make([]string, len(subs))
	employees := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.id
		employees[i] = s.employee
		res.OpeningPaid += s.paid
	}
	byID := matching.NewIndex(ids)
	byEmployee := matching.NewIndex(employees)

	if len(pays) == 0 {
		a.report(0, 0)
	}
	for c, p := range pays {
		res.TotalCollected += p.amount
		idRows := byID.Lookup(p.id)
		employeeRows := byEmployee.Lookup(p.employee)

		amount := a.push(res, subs, c, p, PassID, idRows, p.amount)
		if amount > a.tolerance {
			amount = a.push(res, subs, c, p, PassEmployee, employeeRows, amount)
		}
		if amount > 0 {
			reason := ReasonCapacityExhausted
			if len(idRows) == 0 && len(employeeRows) == 0 {
				reason = ReasonNoMatch
			}
			res.Leftover += amount
			res.Unallocated = append(res.Unallocated, Unallocated{
				CollectedRow:   c + 1,
				IDNumber:       p.id,
				EmployeeNumber: p.employee,
				Amount:         amount,
				Reason:         reason,
			})
		}
		a.report(c+1, len(pays))
	}

	for _, s := range subs {
		res.TotalPaid += s.paid
	}
	res.Allocated = res.TotalPaid - res.OpeningPaid

	// Sums of many rows drift in proportion to their magnitude.
	limit := a.tolerance * math.Max(1, math.Abs(res.TotalCollected))
	if math.Abs(res.Allocated+res.Leftover-res.TotalCollected) > limit {
		return nil, nil, &ConsistencyError{
			Allocated:      res.Allocated,
			Leftover:       res.Leftover,
			TotalCollected: res.TotalCollected,
		}
	}

	out := submission.Clone()
	paidCol := out.EnsureColumn(cols.Paid)
	diffCol := out.EnsureColumn(cols.Diff)
	for i, s := range subs {
		out.Set(i, paidCol, tabular.FormatAmount(s.paid))
		out.Set(i, diffCol, tabular.FormatAmount(s.instalment-s.paid))
	}
	return out, res, nil
}

// push moves up to amount into rows, in order, and returns what is left.
func (a *Allocator) push(res *Result, subs []submissionRecord, collectedRow int, p collectedRecord, pass Pass, rows []int, amount float64) float64 {
	for _, r := range rows {
		if amount <= a.tolerance {
			break
		}
		s := &subs[r]
		remaining := s.instalment - s.paid
		if remaining <= a.tolerance {
			continue
		}
		alloc := math.Min(remaining, amount)
		if alloc == remaining {
			s.paid = s.instalment
		} else {
			s.paid += alloc
		}
		amount -= alloc
		res.Allocations = append(res.Allocations, Allocation{
			CollectedRow:   collectedRow + 1,
			SubmissionRow:  r + 1,
			Pass:           pass,
			IDNumber:       p.id,
			EmployeeNumber: p.employee,
			Amount:         alloc,
			PaidAfter:      s.paid,
			DiffAfter:      s.instalment - s.paid,
		})
	}
	return amount
}

func (a *Allocator) report(done, total int) {
	if a.progress == nil {
		return
	}
	if total == 0 {
		a.progress(1)
		return
	}
	a.progress(float64(done) / float64(total))
}

func requireColumns(table string, t *tabular.Table, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		idx[i] = t.ColumnIndex(n)
		if idx[i] < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Table: table, Missing: missing}
	}
	return idx, nil
}

func (a *Allocator) loadSubmission(t *tabular.Table, idx []int) ([]submissionRecord, error) {
	cols := a.columns
	paidCol := t.ColumnIndex(cols.Paid)
	recs := make([]submissionRecord, len(t.Rows))
	for r := range t.Rows {
		raw := t.Cell(r, idx[2])
		inst, ok, err := tabular.ParseAmount(raw)
		switch {
		case err != nil:
			return nil, recordError("submission", r, cols.InstalmentAmount, raw, "not a number")
		case !ok:
			return nil, recordError("submission", r, cols.InstalmentAmount, raw, "missing instalment amount")
		case inst < 0:
			return nil, recordError("submission", r, cols.InstalmentAmount, raw, "negative instalment amount")
		}

		var paid float64
		if paidCol >= 0 {
			raw = t.Cell(r, paidCol)
			paid, _, err = tabular.ParseAmount(raw)
			switch {
			case err != nil:
				return nil, recordError("submission", r, cols.Paid, raw, "not a number")
			case paid < 0:
				return nil, recordError("submission", r, cols.Paid, raw, "negative paid amount")
			case paid > inst+a.tolerance:
				return nil, recordError("submission", r, cols.Paid, raw, "paid exceeds instalment amount")
			}
			paid = math.Min(paid, inst)
		}

		recs[r] = submissionRecord{
			id:         matching.NormalizeKey(t.Cell(r, idx[0])),
			employee:   matching.NormalizeKey(t.Cell(r, idx[1])),
			instalment: inst,
			paid:       paid,
		}
	}
	return recs, nil
}

// loadCollected reads an empty PAID cell as a zero payment.
func (a *Allocator) loadCollected(t *tabular.Table, idx []int) ([]collectedRecord, error) {
	recs := make([]collectedRecord, len(t.Rows))
	for r := range t.Rows {
		raw := t.Cell(r, idx[2])
		amount, _, err := tabular.ParseAmount(raw)
		switch {
		case err != nil:
			return nil, recordError("collected", r, a.columns.Paid, raw, "not a number")
		case amount < 0:
			return nil, recordError("collected", r, a.columns.Paid, raw, "negative paid amount")
		}
		recs[r] = collectedRecord{
			id:       matching.NormalizeKey(t.Cell(r, idx[0])),
			employee: matching.NormalizeKey(t.Cell(r, idx[1])),
			amount:   amount,
		}
	}
	return recs, nil
}

func recordError(table string, row int, column, value, reason string) *RecordError {
	return &RecordError{Table: table, Row: row + 1, Column: column, Value: value, Reason: reason}
}
