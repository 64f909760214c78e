// Command sqllint checks that every inline SQL constant starts with a unique
// `--sql <uuid>` marker, the tag SQLRunner logs each statement under.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}

	if len(l.violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL marker violations")
		for _, v := range l.violations {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		os.Exit(1)
	}
}

func (l *linter) walk(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil
		}
		return l.lintSource(target, nil)
	}
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintSource(path, nil)
	})
}
