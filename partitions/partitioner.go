package partitions

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoWorkers is returned when rows are partitioned over zero workers.
	ErrNoWorkers = errors.New("at least one worker is required")

	// ErrBrokenPartition is returned by Assignments.Validate when the row ranges
	// do not cover the image exactly once.
	ErrBrokenPartition = errors.New("row ranges do not partition the image")
)

// Plan splits the rows [0, height) into numWorkers contiguous ranges. Every worker
// receives height / numWorkers rows (floor division) and the last worker additionally
// takes the remainder, so it may process more rows than the others.
func Plan(height, numWorkers int) (Assignments, error) {
	if numWorkers < 1 {
		return nil, errors.Wrapf(ErrNoWorkers, "got %d", numWorkers)
	}
	if height < 0 {
		return nil, errors.Errorf("negative image height %d", height)
	}
	rowIncrement := height / numWorkers

	as := make(Assignments, numWorkers)
	for i := 1; i <= numWorkers; i++ {
		startRow := (i - 1) * rowIncrement
		endRow := startRow + rowIncrement
		if i == numWorkers {
			endRow = height
		}
		as[i-1] = RowAssignment{
			WorkerID: i,
			StartRow: startRow,
			RowCount: endRow - startRow,
		}
	}
	return as, nil
}

// Validate checks that the assignments cover [0, height) with contiguous,
// non-overlapping ranges in worker order.
func (as Assignments) Validate(height int) error {
	if len(as) == 0 {
		return ErrNoWorkers
	}
	next := 0
	for i, a := range as {
		if a.WorkerID != i+1 {
			return errors.Wrapf(ErrBrokenPartition, "assignment %d has worker ID %d", i, a.WorkerID)
		}
		if a.RowCount < 0 {
			return errors.Wrapf(ErrBrokenPartition, "%s has negative length", a)
		}
		if a.StartRow != next {
			return errors.Wrapf(ErrBrokenPartition, "%s should start at row %d", a, next)
		}
		next = a.EndRow()
	}
	if next != height {
		return errors.Wrapf(ErrBrokenPartition, "ranges end at row %d, expected %d", next, height)
	}
	return nil
}
