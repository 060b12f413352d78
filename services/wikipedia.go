// services/wikipedia.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// WikipediaClient pulls plain-text extracts for a search query. The
// designer uses them as the reference documents questions are drafted from
// and reviewed against.
type WikipediaClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewWikipediaClient() *WikipediaClient {
	return &WikipediaClient{
		BaseURL: "https://en.wikipedia.org/w/api.php",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type wikipediaResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns up to limit intro extracts for the query, each prefixed
// with its article title.
func (c *WikipediaClient) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", fmt.Sprintf("%d", limit))
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("exintro", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "trivia-quiz-system/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call wikipedia: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}

	var decoded wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode wikipedia response: %w", err)
	}

	var docs []string
	for _, page := range decoded.Query.Pages {
		if page.Extract == "" {
			continue
		}
		docs = append(docs, page.Title+"\n\n"+page.Extract)
	}
	return docs, nil
}
