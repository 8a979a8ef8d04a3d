package services

import (
	"time"

	"token-claim-gate/models"
)

// PreviewIdentity is the well-known identity frame validators use to preview the flow.
const PreviewIdentity = "1"

// EligibilityInput is everything the resolver needs. Fields after a failing rule may be left
// unset: the pipeline stops gathering once a rule has decided.
type EligibilityInput struct {
	IsAuthority bool
	CapReached  bool
	Follow      VerificationOutcome
	Endorse     VerificationOutcome
	Wallets     []string
	LatestClaim *models.ClaimRecord
	Now         time.Time
	Cooldown    Window
}

// ResolveEligibility maps check outcomes and claim history to a decision. It does no I/O.
func ResolveEligibility(in EligibilityInput) Decision {
	switch {
	case in.IsAuthority:
		return decide(AvailableToClaim)
	case in.CapReached:
		return decide(CapacityReached)
	case !in.Follow.Satisfied || !in.Endorse.Satisfied:
		return decide(NeedsFollowOrRecast)
	case len(in.Wallets) == 0:
		return decide(NeedsWallet)
	case in.LatestClaim == nil || !in.Cooldown.Contains(in.LatestClaim.Timestamp, in.Now):
		return decide(AvailableToClaim)
	default:
		return alreadyClaimed(in.LatestClaim.TxHash)
	}
}
