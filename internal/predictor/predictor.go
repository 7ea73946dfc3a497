// Package predictor implements the branch predictor consulted at fetch
// time and trained in the execute stage once a branch resolves.
//
// Grounded on the teacher's BranchPredictor in SupraX.go: a fixed table of
// saturating counters indexed by the low bits of the branch's PC, predicting
// taken once a counter reaches its table's midpoint. The table size and
// counter width are reduced from SUPRAX's 32-entry/4-bit table (tuned for a
// 16-bit SuperH fetch stream) to a 16-entry/2-bit table, the classic
// smallest-viable saturating-counter predictor also sketched as the base
// case in proto/tage/tage.go before that prototype layers tagged geometric
// history tables on top; wiring that full multi-table scheme in is out of
// proportion to this module's single-branch-at-a-time resolve-time training
// loop; see DESIGN.md.
package predictor

const (
	tableSize  = 16
	tableMask  = tableSize - 1
	counterMax = 3 // 2-bit saturating counter: 0..3
	counterMin = 0
)

// Predictor is a PC-indexed table of 2-bit saturating counters.
type Predictor struct {
	counters [tableSize]uint8
}

// New returns a predictor with every counter at its weakly-not-taken state.
func New() *Predictor {
	p := &Predictor{}
	for i := range p.counters {
		p.counters[i] = 1 // weakly not-taken
	}
	return p
}

func index(pc uint32) uint32 {
	return (pc >> 2) & tableMask
}

// Predict returns the predicted direction for a branch at pc.
func (p *Predictor) Predict(pc uint32) bool {
	return p.counters[index(pc)] >= 2
}

// Update trains the counter for pc once the branch's actual outcome is
// known, saturating at the table's extremes.
func (p *Predictor) Update(pc uint32, taken bool) {
	i := index(pc)
	if taken {
		if p.counters[i] < counterMax {
			p.counters[i]++
		}
	} else {
		if p.counters[i] > counterMin {
			p.counters[i]--
		}
	}
}
