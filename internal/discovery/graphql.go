package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// searchQuery selects one page of repositories matching a search predicate.
const searchQuery = `query($q: String!, $first: Int!, $after: String) {
  search(query: $q, type: REPOSITORY, first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      ... on Repository {
        name
        owner { login }
        stargazerCount
        createdAt
        primaryLanguage { name }
        releases { totalCount }
        url
        description
      }
    }
  }
}`

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// PageInfo is the continuation state of a search.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// RepositoryNode is one search result as returned by the API.
// Pointers distinguish missing fields from zero values.
type RepositoryNode struct {
	Name  string `json:"name"`
	Owner *struct {
		Login string `json:"login"`
	} `json:"owner"`
	StargazerCount  int     `json:"stargazerCount"`
	CreatedAt       string  `json:"createdAt"`
	URL             string  `json:"url"`
	Description     *string `json:"description"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	Releases *struct {
		TotalCount int `json:"totalCount"`
	} `json:"releases"`
}

// SearchPage is one page of search results.
type SearchPage struct {
	PageInfo PageInfo         `json:"pageInfo"`
	Nodes    []RepositoryNode `json:"nodes"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type graphQLResponse struct {
	Data *struct {
		Search *SearchPage `json:"search"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// PageFetcher fetches one page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, predicate string, first int, after string) (SearchPage, error)
}

// GraphQLClient talks to the GitHub GraphQL endpoint.
type GraphQLClient struct {
	Endpoint   string
	Token      string
	HTTPClient *http.Client
}

var _ PageFetcher = &GraphQLClient{}

// NewGraphQLClient creates a client with the given request timeout.
func NewGraphQLClient(endpoint, token string, timeout time.Duration) *GraphQLClient {
	return &GraphQLClient{
		Endpoint:   endpoint,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// FetchPage posts the search query and decodes one page.
// An empty after starts from the first page.
func (c *GraphQLClient) FetchPage(ctx context.Context, predicate string, first int, after string) (SearchPage, error) {
	vars := map[string]any{"q": predicate, "first": first}
	if after != "" {
		vars["after"] = after
	}
	reqBody, err := json.Marshal(graphQLRequest{Query: searchQuery, Variables: vars})
	if err != nil {
		return SearchPage{}, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return SearchPage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return SearchPage{}, &DiscoveryError{Err: fmt.Errorf("search request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchPage{}, &DiscoveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return SearchPage{}, &DiscoveryError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	var result graphQLResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return SearchPage{}, &DiscoveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(result.Errors) > 0 {
		return SearchPage{}, &DiscoveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("graphql: %s", result.Errors[0].Message)}
	}
	if result.Data == nil || result.Data.Search == nil {
		return SearchPage{}, &DiscoveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("response has no search data")}
	}
	return *result.Data.Search, nil
}

func excerpt(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
