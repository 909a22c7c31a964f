package filesystem

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// Writer writes files inside the project sandbox, backing up what it replaces.
type Writer interface {
	Write(path string, data []byte) error
}

func writeFileImpl(w Writer, path, content string) (string, error) {
	if err := w.Write(path, []byte(content)); err != nil {
		return "", err
	}

	result := map[string]any{
		"success": true,
		"path":    path,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(w Writer) engine.Tool {
	return engine.Tool{
		Name:        "write_file",
		Description: "Writes the complete content of a file in the website project. Creates the file and its directories if missing; an existing file is backed up before it is replaced.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"File path relative to the project root"},"content":{"type":"string","description":"The full new content of the file"}},"required":["path","content"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			content, ok := args["content"].(string)
			if !ok {
				return "", fmt.Errorf("content must be a string")
			}
			return writeFileImpl(w, path, content)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"write", "side-effect"},
		},
	}
}
