package ingest

import (
	"strings"

	"github.com/magplayer/magd/internal/magfile"
	"github.com/magplayer/magd/internal/models"
)

// topFolder returns the first path segment, lowercased, or "" for entries
// at the archive root.
func topFolder(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return strings.ToLower(p[:i])
	}
	return ""
}

// primaryIndex selects the entry that holds the primary role: the first
// audio entry under a top-level Depoimento folder, in archive enumeration
// order. Returns -1 when no entry qualifies; the role is never fabricated.
func primaryIndex(entries []magfile.Entry) int {
	for i, e := range entries {
		if magfile.Classify(e.Path) != magfile.KindAudio {
			continue
		}
		if topFolder(e.Path) == "depoimento" {
			return i
		}
	}
	return -1
}

// tagFor assigns the association tag for an entry. The primary audio is
// always depoimento; anything under a top-level Arquivos folder is arquivos;
// everything else is outros.
func tagFor(path string, primary bool) string {
	if primary {
		return models.TagDepoimento
	}
	if topFolder(path) == "arquivos" {
		return models.TagArquivos
	}
	return models.TagOutros
}
