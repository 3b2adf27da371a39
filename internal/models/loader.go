// Package models owns the lifecycle of the three classifier models: the
// global resolvers model, the skills resolvers model, and the main skills
// model.
//
// LoadAll runs the three loads concurrently and joins before readiness
// flips; the dispatcher refuses to serve until IsReady reports true. A
// missing model file is a distinct failure from a corrupt one — the first
// carries the training command the operator must run, the second the
// underlying parse error.
package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sennet-ai/sennet/pkg/provider/classifier"
)

// Kind identifies one of the three classifier models.
type Kind string

const (
	KindGlobalResolvers Kind = "global-resolvers"
	KindSkillsResolvers Kind = "skills-resolvers"
	KindMain            Kind = "main"
)

// TrainCommand returns the operator command that produces this model.
func (k Kind) TrainCommand() string {
	return fmt.Sprintf("sennet train --type=%s", k)
}

// Paths holds the on-disk locations of the three model files.
type Paths struct {
	GlobalResolvers string
	SkillsResolvers string
	Main            string
}

// MissingError reports a model file that does not exist. It is a warning
// class failure: the model was never trained.
type MissingError struct {
	Kind Kind
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("models: %s model missing at %q; run %q to train it", e.Kind, e.Path, e.Kind.TrainCommand())
}

// LoadError reports a model file that exists but failed to load.
type LoadError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("models: load %s model from %q: %v", e.Kind, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader loads and holds the three classifier providers.
type Loader struct {
	global classifier.Provider
	skills classifier.Provider
	main   classifier.Provider

	// builtinEntities is the inventory activated on the main model's NER
	// after a successful load. Comes from the NER gateway.
	builtinEntities []string

	ready atomic.Bool
}

// NewLoader creates a Loader over the three providers. builtinEntities is
// the built-in entity inventory to register on the main model.
func NewLoader(global, skills, main classifier.Provider, builtinEntities []string) *Loader {
	return &Loader{
		global:          global,
		skills:          skills,
		main:            main,
		builtinEntities: builtinEntities,
	}
}

// LoadAll loads the three models concurrently. Any failure is fatal for
// that model and for readiness; the joined error reports every failure.
// On success each classifier gets spell checking enabled and the main
// model additionally registers the built-in entity inventory.
func (l *Loader) LoadAll(ctx context.Context, paths Paths) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return l.loadOne(gctx, KindGlobalResolvers, l.global, paths.GlobalResolvers) })
	g.Go(func() error { return l.loadOne(gctx, KindSkillsResolvers, l.skills, paths.SkillsResolvers) })
	g.Go(func() error {
		if err := l.loadOne(gctx, KindMain, l.main, paths.Main); err != nil {
			return err
		}
		if err := l.main.RegisterBuiltinEntities(l.builtinEntities); err != nil {
			return &LoadError{Kind: KindMain, Path: paths.Main, Err: err}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	l.ready.Store(true)
	slog.Info("models: all classifiers loaded")
	return nil
}

// loadOne loads a single model and enables spell checking on success.
func (l *Loader) loadOne(ctx context.Context, kind Kind, p classifier.Provider, path string) error {
	if err := p.Load(ctx, path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("models: model file missing", "kind", kind, "path", path, "train", kind.TrainCommand())
			return &MissingError{Kind: kind, Path: path}
		}
		slog.Error("models: model load failed", "kind", kind, "path", path, "err", err)
		return &LoadError{Kind: kind, Path: path, Err: err}
	}
	p.SetSpellCheck(true)
	slog.Info("models: model loaded", "kind", kind, "path", path)
	return nil
}

// IsReady reports whether all three models loaded successfully.
func (l *Loader) IsReady() bool {
	return l.ready.Load()
}

// Global returns the global resolvers classifier.
func (l *Loader) Global() classifier.Provider { return l.global }

// Skills returns the skills resolvers classifier.
func (l *Loader) Skills() classifier.Provider { return l.skills }

// Main returns the main skills classifier.
func (l *Loader) Main() classifier.Provider { return l.main }
