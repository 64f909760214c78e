package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"rodinstudio/internal/infra"
)

var statementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// linter collects violations across files so markers can be checked for reuse.
type linter struct {
	seen       map[string]string
	violations []violation
}

func newLinter() *linter {
	return &linter{seen: make(map[string]string)}
}

func (l *linter) lintSource(path string, src any) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			raw, err := unquote(lit.Value)
			if err != nil || !looksLikeSQL(raw) {
				continue
			}
			name := "_"
			if i < len(spec.Names) {
				name = spec.Names[i].Name
			}
			pos := fset.Position(lit.Pos())
			marker, _, err := infra.ExtractMarker(raw)
			if err != nil {
				l.report(path, name, pos.Line, "missing or invalid --sql <uuid> marker")
				continue
			}
			where := pos.String() + " (" + name + ")"
			if prev, dup := l.seen[marker]; dup {
				l.report(path, name, pos.Line, "marker "+marker+" already used at "+prev)
				continue
			}
			l.seen[marker] = where
		}
		return true
	})
	return nil
}

func (l *linter) report(file, name string, line int, msg string) {
	l.violations = append(l.violations, violation{file: file, name: name, line: line, message: msg})
}

// looksLikeSQL skips prose that merely contains a keyword.
func looksLikeSQL(s string) bool {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "--sql") {
		return true
	}
	first := strings.Fields(firstLine(trimmed))
	return len(first) > 0 && statementPattern.MatchString(first[0]) && strings.Contains(s, "\n")
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
