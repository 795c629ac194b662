// Package workspace locates the solution or project file the language server
// should load, and converts between file URIs and filesystem paths.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxScanDepth bounds the candidate scan so initialization does not stall on
// huge repositories. Directories nested deeper than this are not descended
// into.
const maxScanDepth = 4

var solutionExts = map[string]bool{
	".sln":  true,
	".slnx": true,
}

// FindBestCandidate scans root for the best solution or project file. A
// solution file anywhere in the bounded tree always outranks a project file.
// Within a set, the candidate with the fewest path components wins; ties go
// to the lexicographically smaller full path, so the result is deterministic
// regardless of directory read order. The returned value is a file URI.
func FindBestCandidate(root string) (string, bool) {
	var solutions, projects []string
	scan(root, 0, &solutions, &projects)

	if len(solutions) > 0 {
		return PathToURI(pickBest(solutions)), true
	}
	if len(projects) > 0 {
		return PathToURI(pickBest(projects)), true
	}
	return "", false
}

func scan(dir string, depth int, solutions, projects *[]string) {
	if depth > maxScanDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			scan(p, depth+1, solutions, projects)
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch {
		case solutionExts[ext]:
			*solutions = append(*solutions, p)
		case ext == ".csproj":
			*projects = append(*projects, p)
		}
	}
}

func pickBest(paths []string) string {
	sort.Slice(paths, func(i, j int) bool {
		ci, cj := componentCount(paths[i]), componentCount(paths[j])
		if ci != cj {
			return ci < cj
		}
		return paths[i] < paths[j]
	})
	return paths[0]
}

func componentCount(p string) int {
	n := 0
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part != "" {
			n++
		}
	}
	return n
}
