package seqtypes

// ConditionalPredicate bounds the blocks a transaction is eligible to be
// included in, per spec sections 3 and 6. All bounds are optional and,
// per SPEC_FULL's resolution of the spec's open question on encoding,
// always plain integers (never hex strings) — block numbers and unix
// timestamps respectively.
type ConditionalPredicate struct {
	BlockNumberMin *uint64 `rlp:"nil"`
	BlockNumberMax *uint64 `rlp:"nil"`
	TimestampMin   *uint64 `rlp:"nil"`
	TimestampMax   *uint64 `rlp:"nil"`
}

// Satisfied reports whether a candidate block at the given height and
// timestamp satisfies every bound the predicate specifies (spec section
// 3: "eligible when the candidate block satisfies every specified
// bound").
func (p *ConditionalPredicate) Satisfied(blockNumber, timestamp uint64) bool {
	if p == nil {
		return true
	}
	if p.BlockNumberMin != nil && blockNumber < *p.BlockNumberMin {
		return false
	}
	if p.BlockNumberMax != nil && blockNumber > *p.BlockNumberMax {
		return false
	}
	if p.TimestampMin != nil && timestamp < *p.TimestampMin {
		return false
	}
	if p.TimestampMax != nil && timestamp > *p.TimestampMax {
		return false
	}
	return true
}
