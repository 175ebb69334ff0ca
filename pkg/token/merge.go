package token

// Merge decides what to persist for a key given the existing row (nil when the
// key has never been written) and an incoming observation.
//
// Rules:
//   - no existing row: the incoming metric is stored as-is.
//   - existing row: Decimals and FirstTxDate keep the first non-nil value ever
//     seen; the incoming value only fills a gap. Everything else (symbol, name,
//     market metrics, view source, UpdatedAt) is taken from the incoming
//     observation unconditionally. CreatedAt is immutable.
//
// The function is pure so the policy can be tested without a database. The
// store applies the same rules atomically in a single INSERT ... ON CONFLICT
// statement; Merge is the reference semantics for that statement.
func Merge(existing *Metric, incoming Metric) Metric {
	if existing == nil {
		return incoming
	}

	out := incoming
	out.ContractAddress = existing.ContractAddress
	out.Chain = existing.Chain
	out.CreatedAt = existing.CreatedAt

	if existing.Decimals != nil {
		out.Decimals = existing.Decimals
	}
	if existing.FirstTxDate != nil {
		out.FirstTxDate = existing.FirstTxDate
	}

	return out
}
