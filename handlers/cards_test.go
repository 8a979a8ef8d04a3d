package handlers

import (
	"strings"
	"testing"

	"token-claim-gate/services"

	"github.com/stretchr/testify/assert"
)

func TestEveryDecisionHasACard(t *testing.T) {
	r := testRenderer()
	kinds := []services.DecisionKind{
		services.NeedsWallet,
		services.NeedsFollowOrRecast,
		services.AvailableToClaim,
		services.AlreadyClaimed,
		services.CapacityReached,
		services.TransferFailed,
		services.InternalError,
		services.Disbursed,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			card := r.Render(services.Decision{Kind: kind})
			assert.Equal(t, kind.String(), card.State)
			assert.True(t, strings.HasPrefix(card.Image, "https://cdn.example/frame-"), card.Image)
			assert.NotEmpty(t, card.Title)
			assert.NotEmpty(t, card.Buttons)
		})
	}
}

func TestUnknownDecisionRendersErrorCard(t *testing.T) {
	card := testRenderer().Render(services.Decision{})
	assert.Equal(t, "internal_error", card.State)
	assert.Equal(t, "https://cdn.example/frame-error.png", card.Image)
	assert.True(t, card.Buttons[0].Reset)
}

func TestDisbursedCardLinksToHoldings(t *testing.T) {
	card := testRenderer().Render(services.Decision{
		Kind:   services.Disbursed,
		TxHash: "0xabc",
		Wallet: "0x1111111111111111111111111111111111111111",
		Token:  "0x4ed4e862860bed51a9570b96d89af5e1b0efefed",
	})
	assert.Equal(t, "1,000 DEGEN", card.Caption)
	assert.Equal(t,
		"https://basescan.org/token/0x4ed4e862860bed51a9570b96d89af5e1b0efefed?a=0x1111111111111111111111111111111111111111",
		card.Buttons[0].Href)
}

func TestTransferFailedWithoutHistoryOffersReset(t *testing.T) {
	card := testRenderer().Render(services.Decision{Kind: services.TransferFailed})
	assert.True(t, card.Buttons[0].Reset)

	card = testRenderer().Render(services.Decision{Kind: services.TransferFailed, TxHash: "0xprev"})
	assert.Equal(t, "https://basescan.org/tx/0xprev", card.Buttons[0].Href)
}
