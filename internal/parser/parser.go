// Package parser extracts titles and file references from Markdown content.
package parser

import (
	"path"
	"strings"
)

// ExtractTitle returns the text of the first level-1 heading ("# ...") in
// content. Deeper heading levels do not qualify. When no such heading exists
// the fallback is fileName without its extension.
func ExtractTitle(content, fileName string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := path.Base(fileName)
	return strings.TrimSuffix(base, path.Ext(base))
}

// DetectReferences returns the subset of candidates mentioned in content.
// A candidate base name counts as referenced when the lowercased content
// contains either the lowercased name itself or the name with its extension
// stripped. This is a plain substring check, so short names can match
// unrelated text; callers accept that trade-off.
//
// The result preserves candidate evaluation order and contains no duplicates.
func DetectReferences(content string, candidates []string) []string {
	lower := strings.ToLower(content)
	seen := make(map[string]struct{}, len(candidates))
	var refs []string
	for _, name := range candidates {
		if _, dup := seen[name]; dup {
			continue
		}
		full := strings.ToLower(name)
		bare := strings.TrimSuffix(full, strings.ToLower(path.Ext(name)))
		if strings.Contains(lower, full) || (bare != "" && strings.Contains(lower, bare)) {
			seen[name] = struct{}{}
			refs = append(refs, name)
		}
	}
	return refs
}
