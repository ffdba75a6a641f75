package catalogue

import (
	"context"
	"fmt"
	"time"

	"remotefs/internal/config"
	"remotefs/internal/logger"
	"remotefs/internal/metrics"
)

// Lister produces the recursive long listing of a remote folder.
type Lister interface {
	ListRecursive(ctx context.Context, srv config.ServerConfig, dir string) (string, error)
}

// Builder creates full catalogues in one pass and saves them.
type Builder struct {
	Lister Lister
	Store  *Store // optional
}

// Build lists srv.Root recursively, parses the output into a fresh
// catalogue and saves it.
func (b *Builder) Build(ctx context.Context, srv config.ServerConfig) (*Catalogue, Report, error) {
	start := time.Now()
	root := srv.Root
	if root == "" {
		root = "/"
	}
	logger.Log("catalogue", "building %s from %s", srv.Name, root)

	text, err := b.Lister.ListRecursive(ctx, srv, root)
	if err != nil {
		return nil, Report{}, fmt.Errorf("listing %s on %s: %w", root, srv.Name, err)
	}

	cat := New(srv.Identity(), root)
	p := Parser{Root: root, Exclude: srv.CatExcludeFolders}
	rep := p.ParseListing(cat, text)
	if rep.Sections == 0 {
		return nil, rep, fmt.Errorf("listing %s on %s: no folders parsed", root, srv.Name)
	}

	if b.Store != nil {
		if err := b.Store.Save(cat); err != nil {
			return cat, rep, err
		}
	}

	count := cat.Count()
	metrics.SetCatalogueEntries(srv.Name, count)
	metrics.RecordCatalogueBuild(time.Since(start))
	logger.Log("catalogue", "built %s: %d folders, %d entries, %d lines skipped in %s",
		srv.Name, rep.Sections, count, len(rep.Skipped), time.Since(start).Round(time.Millisecond))
	return cat, rep, nil
}

// Open loads the saved catalogue of srv, or returns a new empty one when
// none is usable.
func Open(store *Store, srv config.ServerConfig) (*Catalogue, bool) {
	if store != nil {
		cat, err := store.Load(srv.Identity())
		if err == nil {
			metrics.SetCatalogueEntries(srv.Name, cat.Count())
			return cat, true
		}
		logger.Log("catalogue", "no usable catalogue for %s: %v", srv.Name, err)
	}
	root := srv.Root
	if root == "" {
		root = "/"
	}
	return New(srv.Identity(), root), false
}
