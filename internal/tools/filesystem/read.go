package filesystem

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// Reader reads files inside the project sandbox.
type Reader interface {
	Read(path string) ([]byte, error)
}

func readFileImpl(r Reader, path string) (string, error) {
	data, err := r.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewReadFileTool creates the read_file tool. The result is the raw file text.
func NewReadFileTool(r Reader) engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Reads a file of the website project and returns its full content as text.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"File path relative to the project root"}},"required":["path"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			return readFileImpl(r, path)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"read-only", "idempotent"},
		},
	}
}
