package partitions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// RowAssignment is a contiguous range of image rows owned by a worker.
// WorkerID is 1-indexed.
type RowAssignment struct {
	WorkerID int `json:"workerID"`
	StartRow int `json:"startRow"`
	RowCount int `json:"rowCount"`
}

// EndRow returns the exclusive end of the row range.
func (a RowAssignment) EndRow() int {
	return a.StartRow + a.RowCount
}

// Empty reports whether the range has no rows. Computing an empty range is a no-op.
func (a RowAssignment) Empty() bool {
	return a.RowCount == 0
}

func (a RowAssignment) String() string {
	return fmt.Sprintf("worker #%d: rows [%d, %d)", a.WorkerID, a.StartRow, a.EndRow())
}

// Assignments is a set of row assignments ordered by worker ID.
type Assignments []RowAssignment

// TotalRows returns the number of rows covered by the assignments.
func (as Assignments) TotalRows() (n int) {
	for _, a := range as {
		n += a.RowCount
	}
	return
}

// Placement is a row assignment bound to a physical worker node.
type Placement struct {
	RowAssignment
	Host string `json:"host"`
}

// Placements is a list of placed assignments of a render.
type Placements []Placement

// Hosts returns hostnames of the placed workers in the order of placement.
func (ps Placements) Hosts() []string {
	return lo.Map(ps, func(p Placement, _ int) string {
		return p.Host
	})
}

// ByHost converts placements into a mapping of hostname to its placement.
func (ps Placements) ByHost() map[string]Placement {
	m := make(map[string]Placement, len(ps))
	for _, p := range ps {
		m[p.Host] = p
	}
	return m
}

func (ps Placements) Pretty() string {
	sorted := make(Placements, len(ps))
	copy(sorted, ps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WorkerID < sorted[j].WorkerID
	})

	var sb strings.Builder
	for _, p := range sorted {
		fmt.Fprintf(&sb, "  %s: %s\n", p.Host, p.RowAssignment)
	}
	return sb.String()
}
