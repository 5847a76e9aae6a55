// gen-diagrams writes every frame of every topic as SVG, plus a Mermaid
// file per mode and a checksums.txt manifest, for documentation.
// Run: go run ./cmd/gen-diagrams [-out docs/diagrams] [-check]
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/diagram"
)

func main() {
	outDir := flag.String("out", filepath.Join("docs", "diagrams"), "output directory")
	check := flag.Bool("check", false, "verify the output directory is up to date instead of writing")
	flag.Parse()

	cat, err := catalog.Load(catalog.Embedded())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load topics: %v\n", err)
		os.Exit(1)
	}

	files, err := generate(context.Background(), cat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	if *check {
		stale, err := verify(*outDir, files)
		if err != nil {
			fmt.Fprintf(os.Stderr, "check: %v\n", err)
			os.Exit(1)
		}
		if len(stale) > 0 {
			fmt.Fprintln(os.Stderr, "out of date (run go run ./cmd/gen-diagrams):")
			for _, name := range stale {
				fmt.Fprintln(os.Stderr, "  "+name)
			}
			os.Exit(1)
		}
		fmt.Printf("%d files up to date\n", len(files))
		return
	}

	if err := write(*outDir, files); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Written: %d files to %s\n", len(files)+1, *outDir)
}

// generate renders every file keyed by its path relative to the output
// directory.
func generate(ctx context.Context, cat *catalog.Catalog) (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, t := range cat.Topics() {
		for _, m := range t.Modes {
			for step := 0; step < m.Steps(); step++ {
				scene, err := cat.Builder().Build(ctx, t, m.ID, step)
				if err != nil {
					return nil, err
				}
				var buf bytes.Buffer
				if err := diagram.RenderSVG(&buf, scene); err != nil {
					return nil, fmt.Errorf("%s/%s step %d: %w", t.ID, m.ID, step, err)
				}
				files[fmt.Sprintf("%s/%s-%d.svg", t.ID, m.ID, step+1)] = buf.Bytes()

				if step == m.Steps()-1 {
					mmd := "```mermaid\n" + diagram.RenderMermaid(scene) + "\n```\n"
					files[fmt.Sprintf("%s/%s.md", t.ID, m.ID)] = []byte(mmd)
				}
			}
		}
	}
	return files, nil
}

func write(dir string, files map[string][]byte) error {
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	f, err := os.Create(filepath.Join(dir, manifestName))
	if err != nil {
		return err
	}
	if err := writeManifest(f, files); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
