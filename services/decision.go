package services

// DecisionKind enumerates every state the pipeline can hand to the presentation layer.
type DecisionKind int

const (
	NeedsWallet DecisionKind = iota + 1
	NeedsFollowOrRecast
	AvailableToClaim
	AlreadyClaimed
	CapacityReached
	TransferFailed
	InternalError
	// Disbursed is the successful result of the claim step.
	Disbursed
)

func (k DecisionKind) String() string {
	switch k {
	case NeedsWallet:
		return "needs_wallet"
	case NeedsFollowOrRecast:
		return "needs_follow_or_recast"
	case AvailableToClaim:
		return "available_to_claim"
	case AlreadyClaimed:
		return "already_claimed"
	case CapacityReached:
		return "capacity_reached"
	case TransferFailed:
		return "transfer_failed"
	case InternalError:
		return "internal_error"
	case Disbursed:
		return "disbursed"
	default:
		return "unknown"
	}
}

// Decision is the per-request result. TxHash is set for AlreadyClaimed, Disbursed and, when a
// prior claim exists, TransferFailed. Wallet and Token are set for Disbursed.
type Decision struct {
	Kind   DecisionKind
	TxHash string
	Wallet string
	Token  string
}

func decide(kind DecisionKind) Decision { return Decision{Kind: kind} }

func alreadyClaimed(txHash string) Decision {
	return Decision{Kind: AlreadyClaimed, TxHash: txHash}
}

func transferFailed(lastTxHash string) Decision {
	return Decision{Kind: TransferFailed, TxHash: lastTxHash}
}

func disbursed(txHash, wallet, token string) Decision {
	return Decision{Kind: Disbursed, TxHash: txHash, Wallet: wallet, Token: token}
}
