package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const manifestName = "checksums.txt"

// sha256Hex computes the SHA-256 hex digest of r.
func sha256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeManifest writes "<hex>  <name>" lines sorted by name, the format
// shasum -a 256 produces.
func writeManifest(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum, err := sha256Hex(bytes.NewReader(files[name]))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", sum, name); err != nil {
			return err
		}
	}
	return nil
}

// parseManifest parses a standard checksums file (e.g. shasum -a 256 output).
// Each line: "<hex>  <filename>" or "<hex> <filename>".
// Returns map[filename]hex. Malformed lines are skipped.
func parseManifest(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		hash := parts[0]
		name := parts[len(parts)-1]
		if len(hash) != 64 { // SHA-256 hex is 64 chars
			continue
		}
		result[name] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	return result, nil
}

// verify compares freshly generated files with the manifest in dir and
// returns the names that are new, changed or gone, sorted.
func verify(dir string, files map[string][]byte) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recorded, err := parseManifest(f)
	if err != nil {
		return nil, err
	}

	var stale []string
	for name, data := range files {
		sum, err := sha256Hex(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if recorded[name] != sum {
			stale = append(stale, name)
		}
		delete(recorded, name)
	}
	for name := range recorded {
		stale = append(stale, name)
	}
	sort.Strings(stale)
	return stale, nil
}
