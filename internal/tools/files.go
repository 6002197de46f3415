// ABOUTME: File executors: read, write, delete and ls
// ABOUTME: Every path goes through Workspace.Resolve

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadArgs selects a file and an optional line window (1-based offset).
type ReadArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ReadResult is the selected content.
type ReadResult struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	TotalLines int    `json:"totalLines"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// Read returns the content of a file.
func (w *Workspace) Read(_ context.Context, args ReadArgs) (ReadResult, error) {
	path, err := w.Resolve(args.Path)
	if err != nil {
		return ReadResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("read %s: %w", args.Path, err)
	}

	content := string(data)
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	res := ReadResult{Path: w.rel(path), Content: content, TotalLines: len(lines)}

	if args.Offset > 1 || args.Limit > 0 {
		start := max(args.Offset-1, 0)
		start = min(start, len(lines))
		end := len(lines)
		if args.Limit > 0 && start+args.Limit < end {
			end = start + args.Limit
			res.Truncated = true
		}
		res.Content = strings.Join(lines[start:end], "")
	}
	return res, nil
}

// WriteArgs replaces a file's content, creating parent directories.
type WriteArgs struct {
	Path     string `json:"path"`
	FileText string `json:"fileText"`
}

// WriteResult describes the written file.
type WriteResult struct {
	Path         string `json:"path"`
	LinesCreated int    `json:"linesCreated"`
	FileSize     int    `json:"fileSize"`
}

// Write writes a file.
func (w *Workspace) Write(_ context.Context, args WriteArgs) (WriteResult, error) {
	path, err := w.Resolve(args.Path)
	if err != nil {
		return WriteResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: create parent directory: %w", args.Path, err)
	}
	if err := os.WriteFile(path, []byte(args.FileText), 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: %w", args.Path, err)
	}

	lines := strings.Count(args.FileText, "\n")
	if args.FileText != "" && !strings.HasSuffix(args.FileText, "\n") {
		lines++
	}
	return WriteResult{Path: w.rel(path), LinesCreated: lines, FileSize: len(args.FileText)}, nil
}

// DeleteArgs names the file to delete.
type DeleteArgs struct {
	Path string `json:"path"`
}

// DeleteResult confirms the deletion.
type DeleteResult struct {
	Path string `json:"path"`
}

// Delete removes a file. Directories are refused.
func (w *Workspace) Delete(_ context.Context, args DeleteArgs) (DeleteResult, error) {
	path, err := w.Resolve(args.Path)
	if err != nil {
		return DeleteResult{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete %s: %w", args.Path, err)
	}
	if info.IsDir() {
		return DeleteResult{}, fmt.Errorf("delete %s: is a directory", args.Path)
	}
	if err := os.Remove(path); err != nil {
		return DeleteResult{}, fmt.Errorf("delete %s: %w", args.Path, err)
	}
	return DeleteResult{Path: w.rel(path)}, nil
}

// LsArgs names the directory to list.
type LsArgs struct {
	Path string `json:"path"`
}

// LsEntry is one directory entry.
type LsEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// LsResult lists a directory, directories first.
type LsResult struct {
	Path    string    `json:"path"`
	Entries []LsEntry `json:"entries"`
}

// Ls lists a directory.
func (w *Workspace) Ls(_ context.Context, args LsArgs) (LsResult, error) {
	if args.Path == "" {
		args.Path = "."
	}
	path, err := w.Resolve(args.Path)
	if err != nil {
		return LsResult{}, err
	}
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return LsResult{}, fmt.Errorf("ls %s: %w", args.Path, err)
	}

	entries := make([]LsEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		e := LsEntry{Name: d.Name(), IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return LsResult{Path: w.rel(path), Entries: entries}, nil
}
