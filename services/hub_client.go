package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// HubClient queries a Farcaster hub HTTP API. It serves follow checks (link lookups) and
// recast checks (reaction lookups).
type HubClient struct {
	BaseURL string
	// APIKey is sent as x-airstack-hubs when set.
	APIKey string
	http   *upstream
}

// NewHubClient accepts the hub root with or without the trailing /v1 API prefix.
func NewHubClient(name, baseURL, apiKey string, client *http.Client, logger *slog.Logger) *HubClient {
	return &HubClient{
		BaseURL: strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1"),
		APIKey:  apiKey,
		http:    newUpstream(name, client, logger),
	}
}

func (h *HubClient) get(ctx context.Context, path string, query url.Values) (upstreamResponse, error) {
	u := h.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return upstreamResponse{}, fmt.Errorf("build hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("x-airstack-hubs", h.APIKey)
	}
	return h.http.do(req)
}

// IsFollowing looks up the follow link from follower to followee. A missing link is false.
func (h *HubClient) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	resp, err := h.get(ctx, "/v1/linkById", url.Values{
		"fid":        {follower},
		"target_fid": {followee},
		"link_type":  {"follow"},
	})
	if err != nil {
		return false, err
	}
	return hubMessageFound(resp)
}

// HasEndorsed looks up a recast by endorser of the cast (author, contentID).
func (h *HubClient) HasEndorsed(ctx context.Context, endorser, author, contentID string) (bool, error) {
	resp, err := h.get(ctx, "/v1/reactionById", url.Values{
		"fid":           {endorser},
		"reaction_type": {"2"},
		"target_fid":    {author},
		"target_hash":   {contentID},
	})
	if err != nil {
		return false, err
	}
	return hubMessageFound(resp)
}

// hubMessageFound reads a hub message lookup: 200 with a message hash means present, 404 means absent.
func hubMessageFound(resp upstreamResponse) (bool, error) {
	switch {
	case resp.Status == http.StatusNotFound:
		return false, nil
	case resp.Status != http.StatusOK:
		return false, fmt.Errorf("%w: hub returned status %d", ErrUpstream, resp.Status)
	}
	if !gjson.ValidBytes(resp.Body) {
		return false, fmt.Errorf("%w: hub response is not JSON", ErrUnexpectedSchema)
	}
	return len(gjson.GetBytes(resp.Body, "hash").String()) > 2, nil
}

var (
	_ FollowGraph      = (*HubClient)(nil)
	_ EndorsementGraph = (*HubClient)(nil)
)
