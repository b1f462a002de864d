package hnapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JakeFAU/hn-harvester/internal/hn"
)

// Default endpoints of the public Hacker News API.
const (
	DefaultListingURL  = "https://hacker-news.firebaseio.com/v0/topstories.json"
	DefaultItemBaseURL = "https://hacker-news.firebaseio.com/v0/item/"
	DefaultItemSuffix  = ".json"
)

// Config names the listing endpoint and how item URLs are built.
type Config struct {
	ListingURL  string
	ItemBaseURL string
	ItemSuffix  string
}

// Client retrieves listings and items through a single hn.Fetcher. A Client
// holds no mutable state beyond its fetcher.
type Client struct {
	fetcher hn.Fetcher
	cfg     Config
}

// NewClient constructs a Client, filling unset endpoints with the defaults.
func NewClient(fetcher hn.Fetcher, cfg Config) *Client {
	if cfg.ListingURL == "" {
		cfg.ListingURL = DefaultListingURL
	}
	if cfg.ItemBaseURL == "" {
		cfg.ItemBaseURL = DefaultItemBaseURL
	}
	if cfg.ItemSuffix == "" {
		cfg.ItemSuffix = DefaultItemSuffix
	}
	return &Client{fetcher: fetcher, cfg: cfg}
}

// ItemURL concatenates the base, the decimal identifier, and the suffix.
func (c *Client) ItemURL(id hn.ID) string {
	return c.cfg.ItemBaseURL + id.String() + c.cfg.ItemSuffix
}

// ListIDs fetches the listing endpoint once and returns its identifiers in
// listing order.
func (c *Client) ListIDs(ctx context.Context) ([]hn.ID, error) {
	body, err := c.get(ctx, c.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	ids, err := DecodeListing(body)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchItem retrieves and parses one item. Errors wrap hn.ErrTransport or
// hn.ErrMalformed.
func (c *Client) FetchItem(ctx context.Context, id hn.ID) (hn.FetchResult, error) {
	body, err := c.get(ctx, c.ItemURL(id))
	if err != nil {
		return hn.FetchResult{}, fmt.Errorf("fetch item %d: %w", id, err)
	}
	res, err := DecodeItem(body)
	if err != nil {
		return hn.FetchResult{}, fmt.Errorf("item %d: %w", id, err)
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.fetcher.Fetch(ctx, hn.FetchRequest{URL: url})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hn.ErrTransport, err)
	}
	if resp.StatusCode != 0 && (resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices) {
		return nil, fmt.Errorf("%w: %s returned status %d", hn.ErrTransport, url, resp.StatusCode)
	}
	return resp.Body, nil
}
