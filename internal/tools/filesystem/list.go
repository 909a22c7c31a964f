package filesystem

import (
	"context"
	"encoding/json"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
)

// Lister lists directory entries inside the project sandbox.
type Lister interface {
	List(dir string, opts files.ListOptions) ([]files.Entry, error)
}

func listFilesImpl(l Lister, path string, opts files.ListOptions) (string, error) {
	entries, err := l.List(path, opts)
	if err != nil {
		return "", err
	}
	if entries == nil {
		entries = []files.Entry{}
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewListFilesTool creates the list_files tool.
func NewListFilesTool(l Lister) engine.Tool {
	return engine.Tool{
		Name:        "list_files",
		Description: "Lists files and directories of the website project. Returns a JSON array of {name, type, path} entries with paths relative to the project root. Use search_pattern to find files by approximate name.",
		SchemaJSON: `{"type":"object","properties":{
			"path":{"type":"string","description":"Directory relative to the project root. Default: the root"},
			"recursive":{"type":"boolean","description":"If true, list the whole subtree. Default: false"},
			"search_pattern":{"type":"string","description":"Keep only entries whose path matches: substring, all words, or letters in order"},
			"strict_mode":{"type":"boolean","description":"If true, search_pattern must appear as a substring. Default: false"},
			"file_only":{"type":"boolean","description":"If true, omit directories. Default: false"}
		},"required":[]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			opts := files.ListOptions{
				Recursive:     boolArg(args, "recursive"),
				SearchPattern: stringArg(args, "search_pattern"),
				StrictMode:    boolArg(args, "strict_mode"),
				FileOnly:      boolArg(args, "file_only"),
			}
			return listFilesImpl(l, stringArg(args, "path"), opts)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"read-only", "idempotent"},
		},
	}
}
