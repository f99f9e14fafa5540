package database

import "encoding/binary"

// Relative ranking weight per full-text column, in the declared column order
// (txntext, merchant, categories, channel). A zero weight leaves the column
// searchable but excluded from scoring.
var rankWeights = []float64{1.0, 1.5, 0, 0}

// SetRankWeights overrides the scored column weights from configuration.
// Call before issuing queries; the rank function reads these on every row.
func SetRankWeights(text, merchant float64) {
	rankWeights = []float64{text, merchant, 0, 0}
}

// matchRank scores a row from the FTS matchinfo blob: each scored column
// contributes hitsInRow * weight / hitsInAllRows, summed over phrases.
// The blob layout is the default "pcx" format: phrase count, column count,
// then three 32-bit counters per (phrase, column) pair, in machine byte order.
// See https://www.sqlite.org/fts3.html#matchinfo
func matchRank(matchinfo []byte) float64 {
	if len(matchinfo) < 8 {
		return 0
	}
	ints := make([]uint32, len(matchinfo)/4)
	for i := range ints {
		ints[i] = binary.NativeEndian.Uint32(matchinfo[i*4:])
	}
	phrases := int(ints[0])
	cols := int(ints[1])

	var score float64
	for p := 0; p < phrases; p++ {
		for c := 0; c < cols; c++ {
			if c >= len(rankWeights) || rankWeights[c] == 0 {
				continue
			}
			base := 2 + (p*cols+c)*3
			if base+1 >= len(ints) {
				return score
			}
			hits := float64(ints[base])
			total := float64(ints[base+1])
			if total == 0 {
				continue
			}
			score += hits * rankWeights[c] / total
		}
	}
	return score
}
