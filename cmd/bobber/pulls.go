package main

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/byte4ever/bobber/scm/git"
	"github.com/byte4ever/bobber/stamper"
)

// sourceFlags registers the --url and --branch flags
// shared by the hosting commands.
func sourceFlags(cmd *cobra.Command, ref *git.SourceRef) {
	f := cmd.Flags()
	f.StringVar(&ref.URL, "url", "", "repository URL")
	f.StringVar(&ref.Branch, "branch", defaultBranch, "target branch")

	_ = cmd.MarkFlagRequired("url")
}

func parseNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", arg)
	}

	return n, nil
}

// templateVars loads the configured variable files and
// lays extra on top of them.
func (a *app) templateVars(extra map[string]any) (map[string]any, error) {
	vars, err := stamper.LoadVars(a.cfg.VarsFiles)
	if err != nil {
		return nil, err
	}

	maps.Copy(vars, extra)

	return vars, nil
}

func newPRsCmd(a *app) *cobra.Command {
	var ref git.SourceRef

	cmd := &cobra.Command{
		Use:   "prs",
		Short: "List open pull requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := a.host()
			if err != nil {
				return err
			}

			prs, err := host.PullRequests(cmd.Context(), ref)
			if err != nil {
				return err
			}

			return a.write(cmd, prs)
		},
	}

	sourceFlags(cmd, &ref)

	return cmd
}

func newPRCmd(a *app) *cobra.Command {
	var ref git.SourceRef

	cmd := &cobra.Command{
		Use:   "pr NUMBER",
		Short: "Show one pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseNumber(args[0])
			if err != nil {
				return err
			}

			host, err := a.host()
			if err != nil {
				return err
			}

			pr, err := host.PullRequest(cmd.Context(), ref, number)
			if err != nil {
				return err
			}

			return a.write(cmd, pr)
		},
	}

	sourceFlags(cmd, &ref)

	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var (
		ref     git.SourceRef
		message string
	)

	cmd := &cobra.Command{
		Use:   "merge NUMBER",
		Short: "Merge a pull request",
		Long: `Merge a pull request on the host. The commit message is
--message when given, otherwise the merge_message template
rendered with the pull request's NUMBER, TITLE, COMMIT and
the source URL, BRANCH, ORG and REPO.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "merge"

			ctx := cmd.Context()

			number, err := parseNumber(args[0])
			if err != nil {
				return err
			}

			host, err := a.host()
			if err != nil {
				return err
			}

			if message == "" {
				pr, err := host.PullRequest(ctx, ref, number)
				if err != nil {
					return fmt.Errorf("%s: %w", errCtx, err)
				}

				vars, err := a.templateVars(
					stamper.MergeVars(ref, *pr),
				)
				if err != nil {
					return fmt.Errorf("%s: %w", errCtx, err)
				}

				message = a.cfg.Templates().Merge(vars)
			}

			res, err := host.MergePullRequest(
				ctx, ref, number, message,
			)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return a.write(cmd, res)
		},
	}

	sourceFlags(cmd, &ref)
	cmd.Flags().StringVarP(
		&message, "message", "m", "",
		"merge commit message, overrides the template",
	)

	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		ref    git.SourceRef
		commit string
	)

	cmd := &cobra.Command{
		Use:   "status STATE",
		Short: "Attach a build status to a commit",
		Long: `Attach a build status to a commit. STATE is one of pending,
success, failure or error. The target URL, description and
context come from the status templates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "status"

			state, err := git.ParseState(args[0])
			if err != nil {
				return err
			}

			vars, err := a.templateVars(
				stamper.StatusVars(ref, commit),
			)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			host, err := a.host()
			if err != nil {
				return err
			}

			st, err := host.UpdateCommitStatus(
				cmd.Context(),
				ref,
				commit,
				a.cfg.Templates().CommitStatus(state, vars),
			)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return a.write(cmd, st)
		},
	}

	sourceFlags(cmd, &ref)
	cmd.Flags().StringVar(&commit, "commit", "", "commit id")

	_ = cmd.MarkFlagRequired("commit")

	return cmd
}

func newRateLimitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rate-limit",
		Short: "Show the remaining API quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := a.host()
			if err != nil {
				return err
			}

			rl, err := host.RateLimit(cmd.Context())
			if err != nil {
				return err
			}

			return a.write(cmd, rl)
		},
	}
}
