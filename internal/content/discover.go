// Package content is the filesystem collaborator the dev binary uses: it
// discovers behavior modules under a root directory, derives each module's
// precedence tier from its directory depth, and loads the initial world
// state from YAML. The engine core never touches the filesystem itself; it
// only consumes the (module, tier) pairs produced here.
package content

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModuleSource is one discovered behavior module: its identifier, the tier
// derived from directory depth (1 = directly under the root = highest
// precedence), and the directory holding its manifest and Lua sources.
type ModuleSource struct {
	ID   string
	Tier int
	Dir  string
}

// DiscoverModules walks root and returns every directory containing a
// module manifest or at least one Lua source, ordered by (tier, id) so
// loading is deterministic.
//
// Precondition: root must be a readable directory.
// Postcondition: module identifiers are unique, or an error is returned.
func DiscoverModules(root string) ([]ModuleSource, error) {
	var sources []ModuleSource
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		isModule, err := looksLikeModule(path)
		if err != nil {
			return err
		}
		if !isModule {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tier := len(strings.Split(filepath.ToSlash(rel), "/"))
		id := d.Name()
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("content: module id %q found at both %q and %q", id, prev, path)
		}
		seen[id] = path

		sources = append(sources, ModuleSource{ID: id, Tier: tier, Dir: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content: discovering modules under %q: %w", root, err)
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Tier != sources[j].Tier {
			return sources[i].Tier < sources[j].Tier
		}
		return sources[i].ID < sources[j].ID
	})
	return sources, nil
}

// looksLikeModule reports whether dir directly contains a manifest.yaml or
// any *.lua file.
func looksLikeModule(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == "manifest.yaml" || filepath.Ext(e.Name()) == ".lua" {
			return true, nil
		}
	}
	return false, nil
}
