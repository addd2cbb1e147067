package domain

type BlockKind string

const (
	BlockKindFraud    BlockKind = "FRAUD"
	BlockKindNonFraud BlockKind = "NON_FRAUD"
	BlockKindNone     BlockKind = "NONE"
)

// ClientHoldStatus is the derived blocked/kind view of a client. It is
// computed from the client's current ACTIVE holds on every query and never
// stored.
type ClientHoldStatus struct {
	Blocked bool
	Kind    BlockKind
}

// AggregateStatus folds a client's ACTIVE holds into its blocked/kind
// projection: any fraud-suspect hold wins over other types, any hold at all
// means blocked. Non-ACTIVE holds in the input are ignored.
func AggregateStatus(active []Hold) ClientHoldStatus {
	status := ClientHoldStatus{Kind: BlockKindNone}
	for _, h := range active {
		if h.Status != HoldStatusActive {
			continue
		}
		status.Blocked = true
		if h.Type == HoldTypeFraudSuspect {
			status.Kind = BlockKindFraud
			return status
		}
		status.Kind = BlockKindNonFraud
	}
	return status
}
