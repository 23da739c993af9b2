package reconcile

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Excludes matches relative paths against gitignore-style rules.
// A nil *Excludes matches nothing.
type Excludes struct {
	ignore *gitignore.GitIgnore
	rules  int
}

// NewExcludes compiles the given rules. Blank lines and comments are ignored.
// It returns nil when no usable rule remains.
func NewExcludes(lines []string) *Excludes {
	var rules []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	if len(rules) == 0 {
		return nil
	}
	return &Excludes{
		ignore: gitignore.CompileIgnoreLines(rules...),
		rules:  len(rules),
	}
}

// Len returns the number of compiled rules.
func (e *Excludes) Len() int {
	if e == nil {
		return 0
	}
	return e.rules
}

// Match reports whether rel (relative to a tree root) is excluded.
func (e *Excludes) Match(rel string, isDir bool) bool {
	if e == nil {
		return false
	}
	p := filepath.ToSlash(rel)
	if isDir {
		p += "/"
	}
	return e.ignore.MatchesPath(p)
}
