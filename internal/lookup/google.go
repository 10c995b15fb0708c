package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Author sentinels stored verbatim when a lookup cannot produce real names.
const (
	// AuthorUnknown is used when a volume matched but lists no authors.
	AuthorUnknown = "Unknown"
	// AuthorNotFound is used when the API returns no volumes for a title.
	AuthorNotFound = "Not found"
	// AuthorLookupError is used when the request itself failed.
	AuthorLookupError = "Lookup error"
)

// AuthorClient resolves a book title to its author names.
type AuthorClient interface {
	AuthorsByTitle(ctx context.Context, title string) (string, error)
}

// GoogleBooksClient queries the Google Books volumes API.
type GoogleBooksClient struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewGoogleBooksClient creates a client against the given API base URL
// (normally https://www.googleapis.com).
func NewGoogleBooksClient(client *resty.Client, baseURL, apiKey string) *GoogleBooksClient {
	return &GoogleBooksClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Authors []string `json:"authors"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// AuthorsByTitle queries the best volume match for a title and returns its
// authors joined with ", ". A title with no matches yields AuthorNotFound; a
// matched volume without author data yields AuthorUnknown. Transport and
// decoding failures are returned as errors.
func (c *GoogleBooksClient) AuthorsByTitle(ctx context.Context, title string) (string, error) {
	var body volumesResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", "intitle:"+title).
		SetQueryParam("maxResults", "1").
		SetQueryParam("key", c.apiKey).
		SetResult(&body).
		// Decode regardless of the response Content-Type header; an
		// undecoded 200 would look like a miss instead of an error.
		ForceContentType("application/json").
		Get(c.baseURL + "/books/v1/volumes")
	if err != nil {
		return "", fmt.Errorf("google books request: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("google books request: status %d", res.StatusCode())
	}

	if len(body.Items) == 0 {
		return AuthorNotFound, nil
	}

	authors := body.Items[0].VolumeInfo.Authors
	if len(authors) == 0 {
		return AuthorUnknown, nil
	}
	return strings.Join(authors, ", "), nil
}
