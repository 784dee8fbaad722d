// Package cli implements docreviewctl, which runs the review engine against local files.
package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/envutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
	"github.com/yungbote/docreview-backend/internal/platform/openai"
)

// Env carries what the commands share. Model may be nil.
type Env struct {
	Log   *logger.Logger
	Rules *detect.RuleSet
	Model openai.Client
	Scope fix.Scope
}

// DefaultEnv reads rules, fix scope and the optional model from the environment.
func DefaultEnv() (Env, error) {
	log := logger.NewNop()
	scope, ok := fix.ParseScope(envutil.String("REVIEW_FIX_SCOPE", ""))
	if !ok {
		return Env{}, fmt.Errorf("invalid REVIEW_FIX_SCOPE")
	}
	env := Env{Log: log, Rules: detect.LoadRuleSet(log), Scope: scope}
	if openai.ConfigFromEnv().APIKey != "" {
		model, err := openai.NewClient(log)
		if err != nil {
			return Env{}, err
		}
		env.Model = model
	}
	return env, nil
}

func NewRootCmd(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "docreviewctl",
		Short:         "Review contract drafts from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReviewCmd(env), newFixCmd(env), newRulesCmd(env))
	return root
}

// localEngine loads path into an in-memory store and returns an engine plus the reference to it.
func localEngine(ctx context.Context, env Env, path string) (*review.Engine, domain.DocumentRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.DocumentRef{}, fmt.Errorf("read %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	ref := domain.DocumentRef{
		StorageKey:  "local/" + filepath.Base(path),
		DocumentID:  filepath.Base(path),
		ContentType: contentType,
	}
	store := objectstore.NewMemoryStore()
	if err := store.Put(ctx, ref.StorageKey, data, contentType, nil); err != nil {
		return nil, domain.DocumentRef{}, err
	}

	det, err := detect.New(env.Log, env.Rules, env.Model)
	if err != nil {
		return nil, domain.DocumentRef{}, err
	}
	eng, err := review.NewEngine(env.Log, review.Deps{
		Extractor:       extraction.New(env.Log, store, nil),
		Detector:        det,
		Fixer:           fix.NewApplier(env.Rules, env.Scope),
		Versions:        versions.NewManager(env.Log, store),
		Model:           env.Model,
		ExternalEnabled: env.Model != nil,
	})
	if err != nil {
		return nil, domain.DocumentRef{}, err
	}
	return eng, ref, nil
}
