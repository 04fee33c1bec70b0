package updates

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"droidsweep/internal/platform/errors"
)

// Index is the remote document listing the indicator feeds to mirror.
type Index struct {
	Indicators []IndexEntry `yaml:"indicators" json:"indicators"`
}

// IndexEntry is one feed. GitHub entries are resolved to a raw content URL,
// any other type is fetched from DownloadURL.
type IndexEntry struct {
	Name        string        `yaml:"name,omitempty" json:"name,omitempty"`
	Type        string        `yaml:"type,omitempty" json:"type,omitempty"`
	DownloadURL string        `yaml:"download_url,omitempty" json:"download_url,omitempty"`
	GitHub      *GitHubSource `yaml:"github,omitempty" json:"github,omitempty"`
}

type GitHubSource struct {
	Owner  string `yaml:"owner" json:"owner"`
	Repo   string `yaml:"repo" json:"repo"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Path   string `yaml:"path" json:"path"`
}

// IsGitHub reports whether the entry is a usable github reference.
func (e IndexEntry) IsGitHub() bool {
	return e.Type == "github" && e.GitHub != nil &&
		e.GitHub.Owner != "" && e.GitHub.Repo != "" && e.GitHub.Path != ""
}

// branch falls back to main like the upstream index does.
func (g GitHubSource) branch() string {
	if g.Branch == "" {
		return "main"
	}
	return g.Branch
}

// URL returns the address the entry is downloaded from, or "" if the entry
// carries none.
func (e IndexEntry) URL(rawBase string) string {
	if e.Type == "github" {
		if !e.IsGitHub() {
			return ""
		}
		return rawURL(rawBase, e.GitHub.Owner, e.GitHub.Repo, e.GitHub.branch(), e.GitHub.Path)
	}
	return strings.TrimSpace(e.DownloadURL)
}

// Label names the entry in logs and summaries.
func (e IndexEntry) Label() string {
	switch {
	case e.Name != "":
		return e.Name
	case e.IsGitHub():
		return e.GitHub.Owner + "/" + e.GitHub.Repo + "/" + e.GitHub.Path
	default:
		return e.DownloadURL
	}
}

func rawURL(base, owner, repo, branch, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(base, "/"), owner, repo, branch, strings.TrimLeft(path, "/"))
}

// ParseIndex decodes a YAML or JSON index. JSON is valid YAML, so a single
// decoder handles both.
func ParseIndex(data []byte) (*Index, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.Classify(errors.ErrFormat, errors.New("empty document"), "parse index")
	}
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, errors.Classify(errors.ErrFormat, err, "parse index")
	}
	return &idx, nil
}
