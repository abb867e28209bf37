package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ErrTokenRequired indicates a repository operation was attempted without
// a resolvable provider token.
var ErrTokenRequired = errors.New("provider token required for this operation")

// Repo is a repository as reported by the provider.
type Repo struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	Private       bool      `json:"private"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Branch is a repository branch.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Content is a file or directory entry in a repository tree.
type Content struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"` // "file" or "dir"
	DownloadURL string `json:"download_url,omitempty"`
	HTMLURL     string `json:"html_url"`
	Content     string `json:"content,omitempty"` // base64 for files
	Encoding    string `json:"encoding,omitempty"`
}

// ListRepos returns repositories visible to the token's account.
func (c *Client) ListRepos(ctx context.Context, token string, perPage int) ([]Repo, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 30
	}

	query := url.Values{
		"sort":     {"updated"},
		"per_page": {strconv.Itoa(perPage)},
	}
	var repos []Repo
	if err := c.get(ctx, token, "/user/repos", query, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetRepo returns one repository.
func (c *Client) GetRepo(ctx context.Context, token, owner, repo string) (Repo, error) {
	var out Repo
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.get(ctx, token, path, nil, &out); err != nil {
		return Repo{}, err
	}
	return out, nil
}

// ListBranches returns the branches of a repository.
func (c *Client) ListBranches(ctx context.Context, token, owner, repo string) ([]Branch, error) {
	var out []Branch
	path := fmt.Sprintf("/repos/%s/%s/branches", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.get(ctx, token, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContents returns the entries at a path in the repository tree. For a
// directory the result has multiple entries; for a file a single entry
// with base64 content.
func (c *Client) GetContents(ctx context.Context, token, owner, repo, path, ref string) ([]Content, error) {
	query := url.Values{}
	if ref != "" {
		query.Set("ref", ref)
	}

	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), path)

	// The provider returns an object for files and an array for
	// directories; decode into raw first.
	var raw interface{}
	if err := c.get(ctx, token, endpoint, query, &raw); err != nil {
		return nil, err
	}

	switch raw.(type) {
	case []interface{}:
		var out []Content
		if err := reencode(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		var single Content
		if err := reencode(raw, &single); err != nil {
			return nil, err
		}
		return []Content{single}, nil
	}
}
