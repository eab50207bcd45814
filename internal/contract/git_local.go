package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/huangsam/benchtrail/schema"
)

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s. If this is not a Git repository, pass --commit explicitly", repoPath, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// identityFormat separates fields with the ASCII unit separator.
const identityFormat = "--format=%H%x1f%an%x1f%ae%x1f%cn%x1f%ce%x1f%aI%x1f%s"

// GetCommitIdentity implements the GitClient interface.
func (c *LocalGitClient) GetCommitIdentity(ctx context.Context, repoPath string, ref string) (schema.CommitIdentity, error) {
	if ref == "" {
		ref = "HEAD"
	}
	out, err := c.Run(ctx, repoPath, "show", "-s", identityFormat, ref)
	if err != nil {
		return schema.CommitIdentity{}, err
	}
	id, err := ParseCommitIdentity(string(out))
	if err != nil {
		return schema.CommitIdentity{}, err
	}

	// A missing remote is not an error; the URL is informational.
	if remote, err := c.Run(ctx, repoPath, "config", "--get", "remote.origin.url"); err == nil {
		id.URL = CommitURL(strings.TrimSpace(string(remote)), id.Hash)
	}
	return id, nil
}

// ParseCommitIdentity parses the output of `git show -s` with identityFormat.
func ParseCommitIdentity(out string) (schema.CommitIdentity, error) {
	parts := strings.Split(strings.TrimRight(out, "\r\n"), "\x1f")
	if len(parts) != 7 {
		return schema.CommitIdentity{}, fmt.Errorf("unexpected git show output: %q", out)
	}
	return schema.CommitIdentity{
		Hash:      parts[0],
		Author:    schema.Identity{Name: parts[1], Email: parts[2]},
		Committer: schema.Identity{Name: parts[3], Email: parts[4]},
		Timestamp: parts[5],
		Message:   parts[6],
	}, nil
}

// CommitURL derives a browsable commit URL from a remote. Unknown remote shapes yield the remote itself.
func CommitURL(remote, hash string) string {
	base := strings.TrimSuffix(remote, ".git")
	if rest, ok := strings.CutPrefix(base, "git@"); ok {
		host, path, found := strings.Cut(rest, ":")
		if !found {
			return remote
		}
		base = "https://" + host + "/" + path
	}
	if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
		return remote
	}
	return base + "/commit/" + hash
}
