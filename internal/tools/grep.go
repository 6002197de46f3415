// ABOUTME: Grep executor: regular expression search over workspace files
// ABOUTME: Skips hidden directories and binary files

package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const defaultGrepLimit = 200

// GrepArgs configures a search.
type GrepArgs struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path,omitempty"`
	CaseInsensitive bool   `json:"caseInsensitive,omitempty"`
	MaxResults      int    `json:"maxResults,omitempty"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// GrepResult holds the matches in walk order.
type GrepResult struct {
	Matches   []GrepMatch `json:"matches"`
	Truncated bool        `json:"truncated,omitempty"`
}

var errGrepLimit = errors.New("grep limit reached")

// Grep searches files under args.Path for lines matching args.Pattern.
func (w *Workspace) Grep(ctx context.Context, args GrepArgs) (GrepResult, error) {
	if args.Pattern == "" {
		return GrepResult{}, fmt.Errorf("pattern is required")
	}
	pattern := args.Pattern
	if args.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return GrepResult{}, fmt.Errorf("invalid pattern: %w", err)
	}
	limit := args.MaxResults
	if limit <= 0 {
		limit = defaultGrepLimit
	}
	if args.Path == "" {
		args.Path = "."
	}
	root, err := w.Resolve(args.Path)
	if err != nil {
		return GrepResult{}, err
	}

	res := GrepResult{Matches: []GrepMatch{}}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		return w.grepFile(path, re, limit, &res)
	})
	if errors.Is(err, errGrepLimit) {
		res.Truncated = true
		err = nil
	}
	if err != nil {
		return GrepResult{}, err
	}
	return res, nil
}

func (w *Workspace) grepFile(path string, re *regexp.Regexp, limit int, res *GrepResult) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if !re.Match(scanner.Bytes()) {
			continue
		}
		if len(res.Matches) >= limit {
			return errGrepLimit
		}
		res.Matches = append(res.Matches, GrepMatch{Path: w.rel(path), Line: line, Text: scanner.Text()})
	}
	return nil
}
