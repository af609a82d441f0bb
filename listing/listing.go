package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.github.com"

const defaultPageSize = 10

// Item is one merged pull request as served to the UI: identifier,
// human-readable description, reference link, and raw diff text.
type Item struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Diff        string `json:"diff"`
}

// Page is one page of merged pull requests. NextPage is 0 when the listing
// is exhausted.
type Page struct {
	Items    []Item `json:"items"`
	Page     int    `json:"page"`
	NextPage int    `json:"next_page"`
	PageSize int    `json:"page_size"`
}

// Client lists merged pull requests from the upstream repository API.
type Client struct {
	cfg     RepoConfig
	client  *http.Client
	baseURL string
	verbose bool
	logger  *log.Logger
}

func New(cfg RepoConfig, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if cfg.Owner == "" || cfg.Name == "" {
		return nil, errors.New("repo owner and name are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		baseURL: defaultBaseURL,
		verbose: verbose,
		logger:  logger,
	}, nil
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

type pullResp struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	HTMLURL  string     `json:"html_url"`
	MergedAt *time.Time `json:"merged_at"`
}

// MergedPulls returns one page of merged pull requests, each with its raw
// diff. Closed-but-unmerged pulls are filtered out, so a page may hold
// fewer items than the page size.
func (c *Client) MergedPulls(ctx context.Context, page int) (Page, error) {
	if page <= 0 {
		page = 1
	}
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=closed&sort=updated&direction=desc&per_page=%d&page=%d",
		c.baseURL, c.cfg.Owner, c.cfg.Name, c.cfg.PageSize, page)
	c.infof("listing pulls page=%d", page)

	body, err := c.get(ctx, url, "application/vnd.github+json")
	if err != nil {
		return Page{}, err
	}
	var pulls []pullResp
	if err := json.Unmarshal(body, &pulls); err != nil {
		return Page{}, fmt.Errorf("decode pulls listing: %w", err)
	}

	out := Page{Page: page, PageSize: c.cfg.PageSize}
	for _, p := range pulls {
		if p.MergedAt == nil {
			continue
		}
		diff, err := c.pullDiff(ctx, p.Number)
		if err != nil {
			return Page{}, err
		}
		out.Items = append(out.Items, Item{
			ID:          fmt.Sprintf("%d", p.Number),
			Description: p.Title,
			Link:        p.HTMLURL,
			Diff:        diff,
		})
	}
	if len(pulls) == c.cfg.PageSize {
		out.NextPage = page + 1
	}
	return out, nil
}

func (c *Client) pullDiff(ctx context.Context, number int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.cfg.Owner, c.cfg.Name, number)
	body, err := c.get(ctx, url, "application/vnd.github.v3.diff")
	if err != nil {
		return "", fmt.Errorf("fetch diff for #%d: %w", number, err)
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream listing returned %d: %s", resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
