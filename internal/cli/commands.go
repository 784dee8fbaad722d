package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review"
)

func newReviewCmd(env Env) *cobra.Command {
	var (
		external bool
		asJSON   bool
		htmlOut  string
	)
	cmd := &cobra.Command{
		Use:   "review [file]",
		Short: "List drafting issues in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, ref, err := localEngine(ctx, env, args[0])
			if err != nil {
				return err
			}
			res, err := eng.Review(ctx, review.ReviewRequest{Ref: ref, UseExternal: &external})
			if err != nil {
				return err
			}
			if htmlOut != "" {
				if err := os.WriteFile(htmlOut, []byte(res.View.HTML), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", htmlOut, err)
				}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printIssues(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&external, "external", false, "Also ask the generative model (needs OPENAI_API_KEY)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full review result as JSON")
	cmd.Flags().StringVar(&htmlOut, "html", "", "Write the annotated HTML view to this file")
	return cmd
}

func printIssues(cmd *cobra.Command, res review.ReviewResult) {
	cmd.Printf("Provenance: %s\n", res.Provenance)
	for _, w := range res.Warnings {
		cmd.Printf("Warning: %s\n", w)
	}
	cmd.Println()
	for _, is := range res.Issues {
		if start, length, ok := is.Span(); ok {
			cmd.Printf("  [%s] %s at %d+%d (%s)\n", is.Severity, is.Category, start, length, is.ID)
		} else {
			cmd.Printf("  [%s] %s (%s)\n", is.Severity, is.Category, is.ID)
		}
		cmd.Printf("    %s\n", is.Suggestion)
	}
	cmd.Printf("\nTotal: %d issues\n", countReal(res.Issues))
}

func countReal(issues []domain.Issue) int {
	n := 0
	for _, is := range issues {
		if is.Category != domain.CategoryNoIssues {
			n++
		}
	}
	return n
}

const maxFixPasses = 64

func newFixCmd(env Env) *cobra.Command {
	var (
		issueID string
		all     bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "fix [file]",
		Short: "Apply automatic fixes and print the corrected text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if issueID == "" && !all {
				return fmt.Errorf("pass --issue or --all")
			}
			ctx := cmd.Context()
			eng, ref, err := localEngine(ctx, env, args[0])
			if err != nil {
				return err
			}
			disabled := false
			res, err := eng.Review(ctx, review.ReviewRequest{Ref: ref, UseExternal: &disabled})
			if err != nil {
				return err
			}
			text, issues := res.Text, res.Issues
			targets := []string{issueID}
			if all {
				targets = fixableIDs(eng, issues)
			}
			applied := 0
			for pass := 0; len(targets) > 0 && pass < maxFixPasses; pass++ {
				out, err := eng.ApplyFix(ctx, review.FixRequest{Text: text, Issues: issues, IssueID: targets[0]})
				if err != nil {
					if !all {
						return err
					}
					targets = targets[1:]
					continue
				}
				applied++
				text, issues = out.Text, out.Issues
				if !all {
					break
				}
				// Offsets moved; pick the next target from the re-detected issues.
				targets = fixableIDs(eng, issues)
			}
			if output != "" {
				if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				cmd.Printf("Applied %d fixes, wrote %s\n", applied, output)
				return nil
			}
			cmd.Print(text)
			if !strings.HasSuffix(text, "\n") {
				cmd.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&issueID, "issue", "", "Issue id to fix, as printed by review")
	cmd.Flags().BoolVar(&all, "all", false, "Fix every issue that has an automatic fix")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the fixed text to this file")
	return cmd
}

// fixableIDs lists issues whose category carries a replacement.
func fixableIDs(eng *review.Engine, issues []domain.Issue) []string {
	var ids []string
	for _, is := range issues {
		if eng.CanFix(is) {
			ids = append(ids, is.ID)
		}
	}
	return ids
}

func newRulesCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the drafting rules in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range env.Rules.Rules() {
				fixable := "no fix"
				if r.HasFix() {
					fixable = "fix: " + r.Replacement
				}
				cmd.Printf("  %-24s %-7s %s\n", r.Category, r.Severity, fixable)
			}
			cmd.Printf("\nTotal: %d rules\n", env.Rules.Len())
			return nil
		},
	}
}
