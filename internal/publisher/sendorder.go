package publisher

import "math"

// maxSafeHalf is floor((2^53-1)/2), the offset added to a hipri track's
// seqId so it always outranks a lopri track at an equal seqId (spec
// §4.E "Send order formula"). The constant 2^53-1 ("MAX_SAFE") is
// preserved rather than math.MaxUint64/2, per spec's note that it is
// "kept for compatibility" with the reference implementation's use of a
// JS-safe-integer bound.
const maxSafeHalf = (1<<53 - 1) / 2

// computeSendOrder implements spec §4.E's priority formula: a negative
// seqId means "send now" and wins over everything; a hipri track's
// non-negative seqId is shifted into the upper half of the range so it
// always outranks a lopri track at the same seqId.
func computeSendOrder(seqID int64, isHipri bool) uint64 {
	if seqID < 0 {
		return math.MaxUint64
	}
	if isHipri {
		return uint64(seqID) + maxSafeHalf
	}
	return uint64(seqID)
}
