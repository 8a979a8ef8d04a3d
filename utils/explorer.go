// utils/explorer.go
package utils

import (
	"net/url"
	"strings"
)

// Explorer builds block explorer links for one network.
type Explorer struct {
	BaseURL string
}

func (e Explorer) base() string {
	if strings.HasSuffix(e.BaseURL, "/") {
		return e.BaseURL
	}
	return e.BaseURL + "/"
}

// TxURL links to a single transaction.
func (e Explorer) TxURL(txHash string) string {
	return e.base() + "tx/" + url.PathEscape(txHash)
}

// TokenHoldingsURL links to the token page filtered to one wallet.
func (e Explorer) TokenHoldingsURL(wallet, token string) string {
	return e.base() + "token/" + url.PathEscape(token) + "?a=" + url.QueryEscape(wallet)
}
