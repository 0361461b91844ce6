// Package docs embeds the tcx help topics.
package docs

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed *.md
var docs embed.FS

// Readme is the topic listing all the others.
const Readme = "readme"

// Topic returns the markdown of a help topic.
func Topic(name string) (string, error) {
	content, err := docs.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("topic %q not found, see the readme topic: %w", name, err)
	}
	return string(content), nil
}

// Topics concatenates the given topics, all of them for "*".
func Topics(names ...string) (string, error) {
	if slices.Contains(names, "*") {
		all, err := Names()
		if err != nil {
			return "", err
		}
		names = append([]string{Readme}, all...)
	}
	var b bytes.Buffer
	for _, name := range names {
		content, err := Topic(name)
		if err != nil {
			return "", err
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Names lists the topics, readme excluded, sorted.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(docs, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if e.IsDir() || name == Readme {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
