package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/byte4ever/bobber/scm/exec"
	"github.com/byte4ever/bobber/scm/git"
)

const defaultBranch = "master"

// headResult is the output of the head command.
type headResult struct {
	Commit      string `json:"commit"       yaml:"commit"`
	ShortCommit string `json:"short_commit" yaml:"short_commit"`
}

// validateResult is the output of the validate command.
type validateResult struct {
	URL   string `json:"url"   yaml:"url"`
	Valid bool   `json:"valid" yaml:"valid"`
}

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		dir    string
		ref    git.SourceRef
		number int
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Clone or update a repository",
		Long: `Clone the branch into --dir, or pull it when --dir already
holds a clone. With --pr the pull request is fetched from the
configured host and merged into a local prtest branch.

Examples:
  bobber checkout --dir work --url https://github.com/org/app
  bobber checkout --dir work --url https://github.com/org/app --pr 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			const errCtx = "checkout"

			ctx := cmd.Context()

			var opts git.CheckoutOptions

			if number > 0 {
				host, err := a.host()
				if err != nil {
					return fmt.Errorf("%s: %w", errCtx, err)
				}

				pr, err := host.PullRequest(ctx, ref, number)
				if err != nil {
					return fmt.Errorf(
						"%s: fetching pull request %d: %w",
						errCtx, number, err,
					)
				}

				opts.PullRequest = pr
			}

			res, err := git.NewRepo(dir).Checkout(ctx, ref, opts)
			if res != nil {
				if werr := a.write(cmd, res); werr != nil {
					return werr
				}
			}

			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if res.Status != exec.StatusSucceeded {
				return fmt.Errorf(
					"%s: %s", errCtx, res.Status,
				)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "working copy directory")
	f.StringVar(&ref.URL, "url", "", "repository URL")
	f.StringVar(&ref.Branch, "branch", defaultBranch, "branch to check out")
	f.IntVar(&number, "pr", 0, "pull request to merge after checkout")

	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var dir, from, to string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits of a working copy",
		Long: `List the commits of the checked out branch, most recent first.
With --from and --to only the commits reachable from either
revision but not both are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := git.NewRepo(dir)

			var (
				commits []git.Commit
				err     error
			)

			switch {
			case from == "" && to == "":
				commits, err = repo.Commits(cmd.Context())
			case from != "" && to != "":
				commits, err = repo.CompareCommits(
					cmd.Context(), from, to,
				)
			default:
				return errors.New("log: --from and --to go together")
			}

			if err != nil {
				return err
			}

			return a.write(cmd, commits)
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", ".", "working copy directory")
	f.StringVar(&from, "from", "", "start revision")
	f.StringVar(&to, "to", "", "end revision")

	return cmd
}

func newHeadCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "head",
		Short: "Print the commit at HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sha, err := git.NewRepo(dir).LatestCommit(cmd.Context())
			if err != nil {
				return err
			}

			return a.write(cmd, headResult{
				Commit:      sha,
				ShortCommit: git.ShortCommit(sha),
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "working copy directory")

	return cmd
}

func newRemoteHeadCmd(a *app) *cobra.Command {
	var dir, remote, branch string

	cmd := &cobra.Command{
		Use:   "remote-head",
		Short: "Print the commit a remote advertises for a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := git.NewRepo(dir)
			repo.RemoteName = remote

			sha, ok, err := repo.LatestRemoteCommit(
				cmd.Context(), branch,
			)
			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf(
					"remote-head: branch %q not found on %s",
					branch, remote,
				)
			}

			return a.write(cmd, git.RemoteRef{
				Commit: sha,
				Branch: branch,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", ".", "working copy directory")
	f.StringVar(&remote, "remote", "origin", "remote name")
	f.StringVar(&branch, "branch", defaultBranch, "branch name")

	return cmd
}

func newBranchesCmd(a *app) *cobra.Command {
	var dir, remote string

	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List the branches of a remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := git.NewRepo(dir)
			repo.RemoteName = remote

			branches, err := repo.Branches(cmd.Context())
			if err != nil {
				return err
			}

			return a.write(cmd, branches)
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", ".", "working copy directory")
	f.StringVar(&remote, "remote", "origin", "remote name")

	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate URL",
		Short: "Check that a repository URL is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := git.Validator{Mock: a.cfg.Mock}

			return a.write(cmd, validateResult{
				URL:   args[0],
				Valid: v.Validate(cmd.Context(), args[0]),
			})
		},
	}
}

func newElementsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "elements",
		Short: "Describe the fields that configure a source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.write(cmd, git.Elements())
		},
	}
}
