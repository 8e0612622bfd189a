package journals

import (
	"context"
	"fmt"
)

// Sequencer hands out journal numbers from the per-type counter. Next must
// run inside the posting transaction with the journal type row locked, so
// the number and the status flip commit or roll back together.
type Sequencer struct{}

// NewSequencer builds a Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next formats the number for jt and advances its counter. Gaps only appear
// when a posting transaction commits and the journal is later reversed;
// rollbacks never burn a number.
func (s *Sequencer) Next(ctx context.Context, tx TxRepository, jt JournalType) (string, error) {
	number := fmt.Sprintf("%s%d%s", jt.AutoNumberingPrefix, jt.AutoNumberingNext, jt.AutoNumberingSuffix)
	if err := tx.BumpJournalTypeCounter(ctx, jt.ID, jt.AutoNumberingNext+1); err != nil {
		return "", err
	}
	return number, nil
}
