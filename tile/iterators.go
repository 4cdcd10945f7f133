package tile

import (
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterCells returns an iterator over all cells of the visitor.
// Iteration may panic on unrecoverable errors.
func IterCells(v Visitor) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		err := v.VisitCells(func(cell Cell) error {
			if !yield(cell) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// WriteAll copies every cell of v to w and finalizes w.
func WriteAll(w Writer, v Visitor) error {
	if err := v.VisitCells(w.WriteCell); err != nil {
		return err
	}
	return w.Finalize()
}
