// Package tablestore provides a REST table client for deployments where the
// question bank and advice table live behind a hosted relational backend
// rather than a local Postgres instance. It implements the same catalog and
// advice source contracts as the pgx repositories.
package tablestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/glaucoma-screening-server/internal/domain"
)

// Client talks to a hosted table API. Requests are rate limited client-side
// and guarded by a circuit breaker so a failing backend surfaces quickly as
// an unavailable catalog instead of piling up timeouts.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new table API client
func NewClient(config domain.TableStoreConfig) *Client {
	limit := config.RateLimit
	if limit <= 0 {
		limit = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tablestore",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		breaker: breaker,
	}
}

// questionRow is the wire shape of one question with embedded options
type questionRow struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	Type         string      `json:"type"`
	Category     string      `json:"category"`
	DisplayOrder int         `json:"display_order"`
	Status       string      `json:"status"`
	Options      []optionRow `json:"options"`
}

type optionRow struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// adviceRow is the wire shape of one advice table entry
type adviceRow struct {
	ID        string `json:"id"`
	MinScore  int    `json:"min_score"`
	MaxScore  int    `json:"max_score"`
	RiskLevel string `json:"risk_level"`
	Advice    string `json:"advice"`
}

// FetchQuestions retrieves active questions with their options.
// Implements domain.CatalogSource.
func (c *Client) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	var rows []questionRow
	if err := c.getJSON(ctx, "questions", url.Values{"status": {"active"}}, &rows); err != nil {
		return nil, fmt.Errorf("fetching questions from table API: %w", err)
	}

	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		q := domain.Question{
			ID:           row.ID,
			Text:         row.Text,
			Type:         domain.QuestionType(row.Type),
			Category:     row.Category,
			DisplayOrder: row.DisplayOrder,
			Status:       domain.QuestionStatus(row.Status),
		}
		for _, opt := range row.Options {
			q.Options = append(q.Options, domain.Option{
				Value:    opt.Value,
				Label:    opt.Label,
				Score:    opt.Score,
				Position: opt.Position,
			})
		}
		questions = append(questions, q)
	}

	return questions, nil
}

// FetchAdviceEntries retrieves the advice table rows.
// Implements domain.AdviceSource.
func (c *Client) FetchAdviceEntries(ctx context.Context) ([]domain.AdviceEntry, error) {
	var rows []adviceRow
	if err := c.getJSON(ctx, "advice_entries", nil, &rows); err != nil {
		return nil, fmt.Errorf("fetching advice entries from table API: %w", err)
	}

	entries := make([]domain.AdviceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.AdviceEntry{
			ID:        row.ID,
			MinScore:  row.MinScore,
			MaxScore:  row.MaxScore,
			RiskLevel: row.RiskLevel,
			Advice:    row.Advice,
		})
	}

	return entries, nil
}

// getJSON performs a rate-limited, breaker-guarded GET against one table
// endpoint and decodes the JSON array response into out
func (c *Client) getJSON(ctx context.Context, table string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		endpoint := fmt.Sprintf("%s/%s", c.baseURL, table)
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("requesting %s: %w", table, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("table API returned status %d for %s", resp.StatusCode, table)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(body.([]byte), out)
}
