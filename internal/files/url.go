package files

import (
	"net/url"
	"path"
	"strings"
)

// URLToFile guesses which project files serve a public URL. Candidates are
// returned root-relative in rank order: the path with the default extension
// appended, the literal path, the directory's default document, and the
// pages/ convention for the basename and the full path. Only regular files
// that pass the sandbox are kept. An unparsable URL or no match yields an
// empty slice.
func (m *Manager) URLToFile(rawURL string) []string {
	out := []string{}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return out
	}

	p := strings.Trim(u.Path, "/")
	ext := path.Ext(m.cfg.DefaultDocument)
	if p == "" || p == "index" {
		p = m.cfg.DefaultDocument
	}

	withExt := p
	if path.Ext(p) == "" {
		withExt = p + ext
	}

	candidates := []string{
		withExt,
		p,
		path.Join(p, m.cfg.DefaultDocument),
	}
	base := path.Base(withExt)
	if strings.Contains(p, "/") {
		candidates = append(candidates, path.Join("pages", base), path.Join("pages", withExt))
	} else {
		candidates = append(candidates, path.Join("pages", base))
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		rel := path.Join(m.publicPrefix(), c)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		abs, err := m.sb.Resolve(rel)
		if err != nil {
			continue
		}
		info, err := m.fs.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, rel)
	}
	return out
}

func (m *Manager) publicPrefix() string {
	p := strings.Trim(m.cfg.PublicRoot, "/")
	if p == "" {
		return "."
	}
	return p
}
