package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"
)

const followersQuery = `query IsFollowing($follower: String!, $followee: String!) {
  SocialFollowers(
    input: {filter: {dappName: {_eq: farcaster}, followerProfileId: {_eq: $follower}, followingProfileId: {_eq: $followee}}, blockchain: ALL}
  ) {
    Follower {
      followerProfileId
    }
  }
}`

const walletsQuery = `query AssociatedWallets($fid: String!) {
  Socials(
    input: {filter: {userId: {_eq: $fid}, dappName: {_eq: farcaster}}, blockchain: ethereum}
  ) {
    Social {
      userAssociatedAddresses
    }
  }
}`

// AirstackClient talks to the Airstack GraphQL indexer. It answers follow checks and lists the
// addresses associated with a Farcaster identity.
type AirstackClient struct {
	APIURL string
	APIKey string
	// SkipCustody drops the first associated address, which the indexer reports as the custody address.
	SkipCustody bool
	http        *upstream
}

func NewAirstackClient(apiURL, apiKey string, skipCustody bool, client *http.Client, logger *slog.Logger) *AirstackClient {
	return &AirstackClient{
		APIURL:      apiURL,
		APIKey:      apiKey,
		SkipCustody: skipCustody,
		http:        newUpstream("airstack", client, logger),
	}
}

// query runs a GraphQL query and returns the raw "data" object.
func (a *AirstackClient) query(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode airstack query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.APIURL, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build airstack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.APIKey)

	resp, err := a.http.do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.Status != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: airstack returned status %d", ErrUpstream, resp.Status)
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, fmt.Errorf("%w: airstack response is not JSON", ErrUnexpectedSchema)
	}

	doc := gjson.ParseBytes(resp.Body)
	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: airstack: %s", ErrUpstream, errs.Get("0.message").String())
	}
	data := doc.Get("data")
	if !data.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: airstack response has no data", ErrUnexpectedSchema)
	}
	return data, nil
}

func (a *AirstackClient) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	data, err := a.query(ctx, followersQuery, map[string]any{"follower": follower, "followee": followee})
	if err != nil {
		return false, err
	}
	followers := data.Get("SocialFollowers")
	if !followers.IsObject() {
		return false, fmt.Errorf("%w: SocialFollowers missing", ErrUnexpectedSchema)
	}
	list := followers.Get("Follower")
	return list.IsArray() && len(list.Array()) > 0, nil
}

// AssociatedWallets returns the identity's addresses in indexer order, without validation.
func (a *AirstackClient) AssociatedWallets(ctx context.Context, identity string) ([]string, error) {
	data, err := a.query(ctx, walletsQuery, map[string]any{"fid": identity})
	if err != nil {
		return nil, err
	}
	socials := data.Get("Socials.Social")
	if !socials.IsArray() || len(socials.Array()) == 0 {
		return nil, fmt.Errorf("%w: fid %s", ErrIdentityNotFound, identity)
	}
	addresses := socials.Get("0.userAssociatedAddresses")
	if !addresses.IsArray() {
		return nil, fmt.Errorf("%w: userAssociatedAddresses is not a list", ErrUnexpectedSchema)
	}

	entries := addresses.Array()
	if a.SkipCustody && len(entries) > 0 {
		entries = entries[1:]
	}
	wallets := make([]string, 0, len(entries))
	for _, entry := range entries {
		wallets = append(wallets, entry.String())
	}
	return wallets, nil
}

var (
	_ FollowGraph = (*AirstackClient)(nil)
	_ AddressBook = (*AirstackClient)(nil)
)
