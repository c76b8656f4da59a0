// Package ledger is the client for the personal-finance transaction store.
//
// The store speaks GraphQL over HTTP behind a token login. The client covers
// only the operations the reconciler needs: login, the category list, the
// paginated transaction search, and the update-transaction mutation. No
// transport-level retries: a failed call is reported to the caller as-is.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotAuthenticated marks authentication failures, which are fatal to the
// whole run.
var ErrNotAuthenticated = errors.New("ledger: not authenticated")

const defaultBaseURL = "https://api.monarchmoney.com"

// Client talks to the transaction store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates an unauthenticated client; call Login before anything else.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default endpoint.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]any{
		"username":       email,
		"password":       password,
		"trusted_device": true,
		"supports_mfa":   false,
	})
	if err != nil {
		return fmt.Errorf("marshaling login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login returned status %d: %s", ErrNotAuthenticated, resp.StatusCode, body)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	if loginResp.Token == "" {
		return fmt.Errorf("%w: login response carried no token", ErrNotAuthenticated)
	}
	c.token = loginResp.Token
	return nil
}

const categoriesQuery = `query GetCategories {
  categories {
    id
    name
    __typename
  }
}`

// Categories returns the account's spending categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out struct {
		Categories []Category `json:"categories"`
	}
	if err := c.graphql(ctx, categoriesQuery, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	return out.Categories, nil
}

const transactionsQuery = `query GetTransactionsList($offset: Int, $limit: Int, $filters: TransactionFilterInput) {
  allTransactions(filters: $filters) {
    totalCount
    results(offset: $offset, limit: $limit) {
      id
      amount
      date
      notes
      __typename
    }
    __typename
  }
}`

// Transactions runs one page of the filtered transaction search and unwraps
// the result list.
func (c *Client) Transactions(ctx context.Context, p SearchParams) ([]Transaction, error) {
	filters := map[string]any{
		"startDate": p.StartDate,
		"endDate":   p.EndDate,
		"search":    p.Search,
		"hasNotes":  p.HasNotes,
	}
	if len(p.CategoryIDs) > 0 {
		filters["categories"] = p.CategoryIDs
	}
	variables := map[string]any{
		"offset":  p.Offset,
		"limit":   p.Limit,
		"filters": filters,
	}

	var out struct {
		AllTransactions struct {
			TotalCount int           `json:"totalCount"`
			Results    []Transaction `json:"results"`
		} `json:"allTransactions"`
	}
	if err := c.graphql(ctx, transactionsQuery, variables, &out); err != nil {
		return nil, fmt.Errorf("searching transactions: %w", err)
	}
	return out.AllTransactions.Results, nil
}

const updateTransactionMutation = `mutation UpdateTransaction($input: UpdateTransactionMutationInput!) {
  updateTransaction(input: $input) {
    transaction {
      id
      __typename
    }
    errors {
      message
      __typename
    }
    __typename
  }
}`

// UpdateTransaction annotates a transaction with notes and, when categoryID
// is non-nil, recategorizes it.
func (c *Client) UpdateTransaction(ctx context.Context, id, notes string, categoryID *string) error {
	input := map[string]any{
		"id":    id,
		"notes": notes,
	}
	if categoryID != nil {
		input["category"] = *categoryID
	}

	var out struct {
		UpdateTransaction struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"updateTransaction"`
	}
	if err := c.graphql(ctx, updateTransactionMutation, map[string]any{"input": input}, &out); err != nil {
		return fmt.Errorf("updating transaction %s: %w", id, err)
	}
	if len(out.UpdateTransaction.Errors) > 0 {
		return fmt.Errorf("updating transaction %s: %s", id, out.UpdateTransaction.Errors[0].Message)
	}
	return nil
}

// graphql posts one operation and decodes the data envelope into out.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrNotAuthenticated, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parsing data: %w", err)
	}
	return nil
}
