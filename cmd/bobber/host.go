package main

import (
	"fmt"

	"github.com/byte4ever/bobber/config"
	"github.com/byte4ever/bobber/scm/git"
	"github.com/byte4ever/bobber/scm/git/bitbucket"
	"github.com/byte4ever/bobber/scm/git/github"
	"github.com/byte4ever/bobber/scm/git/gitlab"
)

// newHost creates a git.Host for cfg.Provider.
// Pattern: Factory -- selects platform implementation
// at runtime.
func newHost(cfg config.Config) (git.Host, error) {
	const errCtx = "creating host"

	var (
		host git.Host
		err  error
	)

	switch cfg.Provider {
	case config.ProviderGitHub:
		host, err = github.NewProvider(github.Config{
			APIURL:    cfg.APIURL,
			Token:     cfg.Token,
			UserAgent: cfg.UserAgent,
		})

	case config.ProviderGitLab:
		host, err = gitlab.NewProvider(gitlab.Config{
			Host:        cfg.APIURL,
			AccessToken: cfg.Token,
			UserAgent:   cfg.UserAgent,
		})

	case config.ProviderBitbucket:
		host, err = bitbucket.NewProvider(bitbucket.Config{
			APIURL:    cfg.APIURL,
			User:      cfg.User,
			Password:  cfg.Password,
			Token:     cfg.Token,
			UserAgent: cfg.UserAgent,
		})

	default:
		return nil, fmt.Errorf(
			"%s: unknown provider %q", errCtx, cfg.Provider,
		)
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, cfg.Provider, err,
		)
	}

	return host, nil
}
