package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalry/signalry/internal/model"
)

const xSearchURL = "https://api.x.com/2/tweets/search/recent"

// XConnector pulls recent posts matching a query from the X search API.
type XConnector struct {
	query  string
	token  string
	client *http.Client
}

// NewXConnector creates an X connector. The bearer token is read from the
// named environment variable; a missing token is a configuration error.
func NewXConnector(query, tokenEnv string) (*XConnector, error) {
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("x connector: %s is not set", tokenEnv)
	}
	return &XConnector{
		query:  query,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name implements PullConnector.
func (x *XConnector) Name() string { return "x" }

// Fetch runs a recent search and normalizes the results. Keywords are
// OR-combined into the search query; when none are given the configured
// query is used. The since bound is inclusive via start_time.
func (x *XConnector) Fetch(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Signal, error) {
	query := x.query
	if len(keywords) > 0 {
		query = strings.Join(keywords, " OR ")
	}

	maxResults := 100
	if limit > 0 && limit < maxResults {
		// The API rejects max_results below 10.
		maxResults = max(limit, 10)
	}

	params := url.Values{
		"query":        {query},
		"max_results":  {strconv.Itoa(maxResults)},
		"tweet.fields": {"created_at,public_metrics,in_reply_to_user_id,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
	}
	if !since.IsZero() {
		params.Set("start_time", since.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", xSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+x.token)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("x search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("x search: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID            string `json:"id"`
			Text          string `json:"text"`
			AuthorID      string `json:"author_id"`
			CreatedAt     string `json:"created_at"`
			InReplyTo     string `json:"in_reply_to_user_id"`
			PublicMetrics struct {
				Likes   int `json:"like_count"`
				Reposts int `json:"retweet_count"`
				Replies int `json:"reply_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("x search decode: %w", err)
	}

	usernames := make(map[string]string, len(result.Includes.Users))
	for _, u := range result.Includes.Users {
		usernames[u.ID] = u.Username
	}

	var signals []model.Signal
	for _, t := range result.Data {
		if atLimit(len(signals), limit) {
			break
		}

		ts := parsePostTime(t.CreatedAt)
		if !withinWindow(ts, since) {
			continue
		}

		actor := usernames[t.AuthorID]
		if actor == "" {
			actor = t.AuthorID
		}

		var replyTo *string
		if t.InReplyTo != "" {
			v := t.InReplyTo
			replyTo = &v
		}

		signals = append(signals, model.Signal{
			ID:        model.NewSignalID(),
			Source:    x.Name(),
			Actor:     actor,
			Text:      t.Text,
			Timestamp: ts,
			SourceID:  t.ID,
			ReplyTo:   replyTo,
			Metrics: map[string]int{
				"likes":   t.PublicMetrics.Likes,
				"reposts": t.PublicMetrics.Reposts,
				"replies": t.PublicMetrics.Replies,
			},
		})
	}
	return signals, nil
}
