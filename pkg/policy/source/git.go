package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/xfhg/intercept/pkg/config"
)

// GitSource reads a policy file from a git repository. Every Fetch performs
// a fresh shallow clone into a temporary directory.
type GitSource struct {
	cfg    *config.GitPolicyConfig
	logger *slog.Logger
}

// NewGitSource creates a git-backed source.
func NewGitSource(cfg *config.GitPolicyConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("git config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("policy path inside the repository cannot be empty")
	}
	if _, err := authMethod(&cfg.Auth); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default().With("component", "policy.source")
	}
	return &GitSource{cfg: cfg, logger: logger}, nil
}

// Fetch clones the repository and reads the configured path.
func (s *GitSource) Fetch(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "intercept-policy-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}
	defer os.RemoveAll(dir)

	auth, err := authMethod(&s.cfg.Auth)
	if err != nil {
		return nil, err
	}

	opts := &gogit.CloneOptions{
		URL:   s.cfg.Repository,
		Depth: s.cfg.Depth,
		Auth:  auth,
	}
	if s.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.cfg.Branch)
		opts.SingleBranch = true
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, dir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", s.cfg.Repository, err)
	}

	var commit string
	if head, err := repo.Head(); err == nil {
		commit = head.Hash().String()
	}

	clean := filepath.Clean(filepath.FromSlash(s.cfg.Path))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("policy path %q escapes the repository", s.cfg.Path)
	}
	data, err := os.ReadFile(filepath.Join(dir, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from repository: %w", s.cfg.Path, err)
	}

	s.logger.Info("policy fetched from git",
		"repository", s.cfg.Repository,
		"branch", s.cfg.Branch,
		"commit", commit,
		"duration", time.Since(start),
	)
	return data, nil
}

// Name returns repository@branch:path.
func (s *GitSource) Name() string {
	name := s.cfg.Repository
	if s.cfg.Branch != "" {
		name += "@" + s.cfg.Branch
	}
	return name + ":" + s.cfg.Path
}

// authMethod resolves git credentials. Secrets are read from the environment
// variables named in the configuration.
func authMethod(cfg *config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "token":
		token := os.Getenv(cfg.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("token auth requires environment variable %s", cfg.TokenEnv)
		}
		return &http.BasicAuth{Username: "git", Password: token}, nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, os.Getenv(cfg.SSHPassphraseEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
