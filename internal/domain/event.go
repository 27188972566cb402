package domain

// EventKind classifies a ledger event.
type EventKind string

const (
	EventCreate   EventKind = "CREATE"
	EventIssue    EventKind = "ISSUE"
	EventTransfer EventKind = "TRANSFER"
	EventMine     EventKind = "MINE"
	EventRetarget EventKind = "RETARGET"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k EventKind) IsValid() bool {
	switch k {
	case EventCreate, EventIssue, EventTransfer, EventMine, EventRetarget:
		return true
	}
	return false
}

// LedgerEvent records one committed state change. Events are produced by the
// engines after commit and delivered to notifiers; they are never read back
// to derive balances.
// Corresponds to the ledger_events journal table.
type LedgerEvent struct {
	EventID   string      // uuid
	Kind      EventKind   // what happened
	Symbol    string      // symbol code
	From      AccountName // sender / issuer (empty for mine)
	To        AccountName // receiver / miner
	Quantity  Asset       // moved or minted amount (zero for retarget)
	Memo      string      // caller memo (<= 256 bytes)
	Height    uint64      // block height after a mine/retarget
	Digest    string      // accepted digest (hex) for mine
	Target    string      // difficulty (hex) in effect after the event
	Timestamp int64       // commit time (ms)
}

// Recipients returns the distinct accounts that must be notified.
func (e *LedgerEvent) Recipients() []AccountName {
	var out []AccountName
	if e.From != "" {
		out = append(out, e.From)
	}
	if e.To != "" && e.To != e.From {
		out = append(out, e.To)
	}
	return out
}
