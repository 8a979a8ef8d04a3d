// handlers/cards.go
package handlers

import (
	"token-claim-gate/services"
	"token-claim-gate/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Button is one frame intent: a post to Action, a link to Href, or a reset to the entry card.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action,omitempty"`
	Href   string `json:"href,omitempty"`
	Reset  bool   `json:"reset,omitempty"`
}

// Card is the presentation of a decision. It never carries raw errors.
type Card struct {
	State   string   `json:"state"`
	Title   string   `json:"title"`
	Image   string   `json:"image"`
	Caption string   `json:"caption,omitempty"`
	Buttons []Button `json:"buttons"`
}

// CardRenderer maps decisions to cards for one deployment.
type CardRenderer struct {
	CDN        string
	ProfileURL string
	InfoURL    string
	Explorer   utils.Explorer
	allocation string
}

// NewCardRenderer formats the allocation once, e.g. "1,000 DEGEN".
func NewCardRenderer(cdn, profileURL, infoURL string, explorer utils.Explorer, allocation decimal.Decimal, symbol string) *CardRenderer {
	amount, _ := allocation.Float64()
	printer := message.NewPrinter(language.English)
	return &CardRenderer{
		CDN:        cdn,
		ProfileURL: profileURL,
		InfoURL:    infoURL,
		Explorer:   explorer,
		allocation: printer.Sprintf("%v %s", number.Decimal(amount, number.MaxFractionDigits(4)), symbol),
	}
}

func (r *CardRenderer) image(name string) string { return r.CDN + name }

func (r *CardRenderer) follow() Button { return Button{Label: "Follow", Href: r.ProfileURL} }

// Render returns the card for d. Every decision kind has a card with a way forward.
func (r *CardRenderer) Render(d services.Decision) Card {
	card := Card{State: d.Kind.String()}
	switch d.Kind {
	case services.NeedsWallet:
		card.Title = "Deribet"
		card.Image = r.image("frame-no-wallet.png")
		card.Buttons = []Button{r.follow(), {Label: "Check", Action: "/check"}}
	case services.NeedsFollowOrRecast:
		card.Title = "Deribet"
		card.Image = r.image("frame-no-follow-degen-2.png")
		card.Buttons = []Button{r.follow(), {Label: "Check", Action: "/check"}}
	case services.AvailableToClaim:
		card.Title = "Check Tomorrow!"
		card.Image = r.image("frame-daily-allocation-yes-degen-2.png")
		card.Caption = r.allocation
		card.Buttons = []Button{{Label: "Claim", Action: "/claim"}}
	case services.AlreadyClaimed:
		card.Title = "Sorry!"
		card.Image = r.image("frame-daily-allocation-no-degen-2.png")
		card.Buttons = r.explorerOrReset(d.TxHash)
	case services.CapacityReached:
		card.Title = "You're In!"
		card.Image = r.image("frame-capacity-reached-degen-2.png")
		card.Buttons = []Button{r.follow()}
	case services.TransferFailed:
		card.Title = "Sorry!"
		card.Image = r.image("frame-daily-allocation-no-degen-2.png")
		card.Buttons = r.explorerOrReset(d.TxHash)
	case services.Disbursed:
		card.Title = "Successful"
		card.Image = r.image("frame-tx-succesfull-degen.png")
		card.Caption = r.allocation
		card.Buttons = []Button{{Label: "Check on Explorer", Href: r.Explorer.TokenHoldingsURL(d.Wallet, d.Token)}}
	default:
		card.State = services.InternalError.String()
		card.Title = "Nooo! What Happened!"
		card.Image = r.image("frame-error.png")
		card.Buttons = []Button{{Label: "Reset", Reset: true}}
	}
	return card
}

// WelcomeCard is the entry card shown while the cap window has room.
func (r *CardRenderer) WelcomeCard() Card {
	return Card{
		State:   services.AvailableToClaim.String(),
		Title:   "Check",
		Image:   r.image("frame-welcome-degen-2.png"),
		Caption: r.allocation,
		Buttons: []Button{
			{Label: "Info", Href: r.InfoURL},
			r.follow(),
			{Label: "Claim", Action: "/check"},
		},
	}
}

func (r *CardRenderer) explorerOrReset(txHash string) []Button {
	if txHash == "" {
		return []Button{{Label: "Reset", Reset: true}}
	}
	return []Button{{Label: "Check on Explorer", Href: r.Explorer.TxURL(txHash)}}
}
