// Package ignore implements gitignore-style pattern matching used by the
// local directory watcher to decide which files become sync keys.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Matcher holds a set of ignore patterns and decides whether a given
// path should be excluded from the watched key set.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	text       string
	isNegation bool
	isDir      bool
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// LoadFromFile loads ignore patterns from a gitignore-style file. A
// missing file is not an error.
func (m *Matcher) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var patterns []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}

	m.AddPatterns(patterns)
	return scanner.Err()
}

// AddPatterns registers multiple patterns.
func (m *Matcher) AddPatterns(patterns []string) {
	for _, p := range patterns {
		m.AddPattern(p)
	}
}

// AddPattern registers a single pattern.
func (m *Matcher) AddPattern(text string) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "#") {
		return
	}

	p := pattern{text: text}
	if strings.HasPrefix(text, "!") {
		p.isNegation = true
		p.text = text[1:]
	}
	if strings.HasSuffix(p.text, "/") {
		p.isDir = true
		p.text = strings.TrimSuffix(p.text, "/")
	}

	m.patterns = append(m.patterns, p)
}

// ShouldIgnore reports whether path should be excluded from the watched
// key set.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	if isDefaultIgnored(filepath.Base(path)) {
		return true
	}

	ignored := false
	for _, p := range m.patterns {
		if p.isDir && !isDir {
			continue
		}
		if matches(path, p.text) {
			ignored = !p.isNegation
		}
	}
	return ignored
}

func matches(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.Contains(pattern, "*") || strings.Contains(pattern, "?") {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
	}

	if strings.Contains(path, pattern) {
		return true
	}
	if filepath.Base(path) == pattern {
		return true
	}

	for _, part := range strings.Split(path, "/") {
		if part == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, part); matched {
			return true
		}
	}

	return false
}

func isDefaultIgnored(name string) bool {
	defaults := []string{
		".DS_Store", "Thumbs.db", "desktop.ini",
		".git", ".svn", ".hg", ".idea", ".vscode",
		"node_modules", "__pycache__",
		"*.pyc", "*.pyo", "*.swp", "*.swo", "*~", "#*#", ".#*",
	}
	for _, p := range defaults {
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}
