// Command depgraph emits a Graphviz dot graph of this module's internal
// package dependencies.
//
// Adapted from the teacher kernel's misc/depgraph, which shells out to
// `go mod graph` and prints one edge per module-version pair found in its
// output. That approach only sees module-level edges; it can't tell which
// of our own packages import which others, since every internal package
// here is its own module stitched together with replace directives of
// identical version "v0.0.0". depgraph instead reads the root go.mod
// directly with modfile (no `go` subprocess, no network) to enumerate the
// replaced packages, then loads the real import graph among them with
// go/packages and prints only the edges that stay inside that set.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

func main() {
	root := flag.String("root", ".", "path to the module root (the directory holding go.mod)")
	flag.Parse()

	if err := run(*root, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "depgraph:", err)
		os.Exit(1)
	}
}

func run(root string, out *os.File) error {
	internal, err := internalPackages(root)
	if err != nil {
		return err
	}

	patterns := make([]string, 0, len(internal))
	for path := range internal {
		patterns = append(patterns, path)
	}
	sort.Strings(patterns)

	cfg := &packages.Config{
		Dir:  root,
		Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return fmt.Errorf("loading package graph: %w", err)
	}

	type edge struct{ from, to string }
	var edges []edge
	for _, p := range pkgs {
		if !internal[p.PkgPath] {
			continue
		}
		for _, err := range p.Errors {
			fmt.Fprintln(os.Stderr, "depgraph:", err)
		}
		for imp := range p.Imports {
			if internal[imp] {
				edges = append(edges, edge{p.PkgPath, imp})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	fmt.Fprintln(out, "digraph depgraph {")
	for _, e := range edges {
		fmt.Fprintf(out, "    %q -> %q;\n", e.from, e.to)
	}
	fmt.Fprintln(out, "}")
	return nil
}

// internalPackages returns the set of import paths the root go.mod's
// replace directives point at local directories -- our own packages, as
// opposed to the third-party modules in the require block.
func internalPackages(root string) (map[string]bool, error) {
	gomodPath := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomodPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", gomodPath, err)
	}
	mf, err := modfile.Parse(gomodPath, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", gomodPath, err)
	}

	internal := make(map[string]bool, len(mf.Replace))
	for _, r := range mf.Replace {
		if r.New.Path != "" && (filepath.IsAbs(r.New.Path) || r.New.Path[0] == '.') {
			internal[r.Old.Path] = true
		}
	}
	return internal, nil
}
