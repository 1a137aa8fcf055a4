package persist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/samber/oops"
)

const (
	defaultGitHubBaseURL = "https://api.github.com"
	defaultGitHubBranch  = "main"
	githubUserAgent      = "reactbot"
)

//GitHubConfig describes the repository documents are mirrored into
type GitHubConfig struct {
	//Defaults to https://api.github.com
	BaseURL string
	Owner   string
	Repo    string
	//Defaults to main
	Branch string
	Token  string
	//Optional directory inside the repository
	PathPrefix string
	//Defaults to a client with a 30 second timeout
	HTTPClient *http.Client
}

//Enabled is true if enough is configured to mirror anything
func (c GitHubConfig) Enabled() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

//GitHubSink mirrors documents into a repository through the contents API, creating the file on first
//write and updating it against its current blob SHA afterwards.
type GitHubSink struct {
	baseURL    string
	owner      string
	repo       string
	branch     string
	token      string
	prefix     string
	httpClient *http.Client
}

//APIError is a non-2xx response from GitHub
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type contentsPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

//NewGitHubSink validates the configuration and fills in defaults
func NewGitHubSink(cfg GitHubConfig) (*GitHubSink, error) {
	if !cfg.Enabled() {
		return nil, oops.Code("CONFIG_INVALID").Errorf("github mirror needs a token, owner and repo")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGitHubBaseURL
	}
	branch := cfg.Branch
	if branch == "" {
		branch = defaultGitHubBranch
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GitHubSink{
		baseURL:    baseURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		branch:     branch,
		token:      cfg.Token,
		prefix:     strings.Trim(cfg.PathPrefix, "/"),
		httpClient: client,
	}, nil
}

//Name identifies the sink in logs and metrics
func (g *GitHubSink) Name() string {
	return "github"
}

//Put creates or updates the named file on the configured branch
func (g *GitHubSink) Put(ctx context.Context, name string, data []byte) error {
	filePath := path.Join(g.prefix, name)
	sha, err := g.currentSHA(ctx, filePath)
	if err != nil {
		return oops.Code("MIRROR_READ_FAILED").With("path", filePath).Wrap(err)
	}

	body, err := json.Marshal(contentsPutRequest{
		Message: fmt.Sprintf("Auto-update %v by bot", filePath),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  g.branch,
		SHA:     sha,
	})
	if err != nil {
		return oops.Code("MIRROR_WRITE_FAILED").With("path", filePath).Wrap(err)
	}
	req, err := g.newRequest(ctx, http.MethodPut, g.contentsURL(filePath), bytes.NewReader(body))
	if err != nil {
		return oops.Code("MIRROR_WRITE_FAILED").With("path", filePath).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return oops.Code("MIRROR_WRITE_FAILED").With("path", filePath).Wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return oops.Code("MIRROR_WRITE_FAILED").With("path", filePath).Wrap(readAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

//currentSHA returns the blob SHA of the file on the branch, or an empty string if it does not exist yet
func (g *GitHubSink) currentSHA(ctx context.Context, filePath string) (string, error) {
	query := url.Values{}
	query.Set("ref", g.branch)
	req, err := g.newRequest(ctx, http.MethodGet, g.contentsURL(filePath)+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode == http.StatusOK:
		var contents contentsResponse
		if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
			return "", fmt.Errorf("failed to decode contents response: %w", err)
		}
		return contents.SHA, nil
	default:
		return "", readAPIError(resp)
	}
}

func (g *GitHubSink) contentsURL(filePath string) string {
	segments := strings.Split(filePath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%v/repos/%v/%v/contents/%v",
		g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo), strings.Join(segments, "/"))
}

func (g *GitHubSink) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("User-Agent", githubUserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		message = body.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
