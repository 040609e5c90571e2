// Package cicd provisions CI/CD pipelines on GitHub Actions: it
// creates a repository per service, commits a workflow file and a set
// of starter files, and reports the resulting repository URL.
package cicd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const workflowPath = ".github/workflows/ci-cd.yml"

// Client wraps the GitHub API for repository and file operations
// within a single organization.
type Client struct {
	gh  *github.Client
	org string
}

// NewClient creates an authenticated GitHub client for the given
// organization. Returns an error if the token is empty.
func NewClient(token, org string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{gh: github.NewClient(tc), org: org}, nil
}

// Org returns the organization the client operates in.
func (c *Client) Org() string {
	return c.org
}

// EnsureRepository creates a repository for the service if it does not
// already exist. An existing repository is not an error.
func (c *Client) EnsureRepository(ctx context.Context, name, serviceType string) error {
	gitignore := "Node"
	if serviceType == "api" || serviceType == "worker" {
		gitignore = "Python"
	}

	repo := &github.Repository{
		Name:              github.String(name),
		Description:       github.String("Service created by the platform engineering API"),
		Private:           github.Bool(false),
		AutoInit:          github.Bool(true),
		GitignoreTemplate: github.String(gitignore),
	}

	_, resp, err := c.gh.Repositories.Create(ctx, c.org, repo)
	if err != nil {
		// 422 means the repository already exists.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		if strings.Contains(err.Error(), "name already exists") {
			return nil
		}
		return fmt.Errorf("creating repository %s/%s: %w", c.org, name, err)
	}
	return nil
}

// CommitFile creates or updates a file on the main branch of the
// given repository.
func (c *Client) CommitFile(ctx context.Context, repo, path, message string, content []byte) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String("main"),
	}

	// An update needs the SHA of the existing blob.
	existing, _, resp, err := c.gh.Repositories.GetContents(ctx, c.org, repo, path,
		&github.RepositoryContentGetOptions{Ref: "main"})
	if err == nil && existing != nil {
		opts.SHA = existing.SHA
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("checking %s in %s/%s: %w", path, c.org, repo, err)
	}

	if opts.SHA != nil {
		_, _, err = c.gh.Repositories.UpdateFile(ctx, c.org, repo, path, opts)
	} else {
		_, _, err = c.gh.Repositories.CreateFile(ctx, c.org, repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("committing %s to %s/%s: %w", path, c.org, repo, err)
	}
	return nil
}
