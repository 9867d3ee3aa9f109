// Package text renders values as YAML documents and compares them line by line.
package text

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/davidmdm/ansi"
)

// contextLines of unchanged YAML surround each hunk; enough to locate the field being compared.
const contextLines = 2

// DiffFunc compares the configured document with the live one.
type DiffFunc func(configured, live File) string

type File struct {
	Name    string
	Content string
}

// Diff returns a unified diff from configured to live, or an empty string when they are equal.
func Diff(configured, live File) string {
	if configured.Content == live.Content {
		return ""
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(configured.Content),
		B:        difflib.SplitLines(live.Content),
		FromFile: configured.Name,
		ToFile:   live.Name,
		Context:  contextLines,
	})
	return diff
}

var (
	removed = ansi.MakeStyle(ansi.FgRed)
	added   = ansi.MakeStyle(ansi.FgGreen)
	header  = ansi.MakeStyle(ansi.FgCyan)
)

// DiffColorized is Diff with hunk headers and changed lines styled for a terminal.
func DiffColorized(configured, live File) string {
	lines := strings.Split(Diff(configured, live), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = header.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removed.Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = added.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}

// ToYamlFile encodes value with two space indentation.
func ToYamlFile(name string, value any) (File, error) {
	var buffer bytes.Buffer

	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return File{}, err
	}

	return File{Name: name, Content: buffer.String()}, encoder.Close()
}
