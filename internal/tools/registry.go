package tools

import (
	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
	"github.com/ChamsBouzaiene/sitesmith/internal/tools/filesystem"
)

// NewRegistry creates the tool registry the agent exposes to the model:
// list_files, read_file and write_file over the sandboxed file manager.
func NewRegistry(m *files.Manager) engine.ToolRegistry {
	reg := make(engine.ToolRegistry)
	reg.Register(filesystem.NewListFilesTool(m))
	reg.Register(filesystem.NewReadFileTool(m))
	reg.Register(filesystem.NewWriteFileTool(m))
	return reg
}
