package node

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// A Resolver turns the names the host passes around into file paths.
type Resolver interface {
	Resolve(name string) (string, error)
	Exists(name string) bool
}

// A Lister can also say which files are available to pick from.
type Lister interface {
	List() ([]string, error)
}

// DirResolver resolves names against the host's input, output and temp
// directories. A name may carry an annotation saying which one, e.g.
// "shot.dng [output]"; unannotated names live in InputDir.
type DirResolver struct {
	InputDir  string
	OutputDir string
	TempDir   string
}

// splitAnnotation pulls the "[input]"-style suffix off a name.
func splitAnnotation(name string) (string, string) {
	name = strings.TrimSpace(name)
	for _, a := range []string{"input", "output", "temp"} {
		if suffix := " [" + a + "]"; strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), a
		}
	}
	return name, "input"
}

func (r DirResolver) Resolve(name string) (string, error) {
	op := "node.DirResolver.Resolve"
	base, annotation := splitAnnotation(name)

	dir := r.InputDir
	switch annotation {
	case "output":
		dir = r.OutputDir
	case "temp":
		dir = r.TempDir
	}
	if dir == "" {
		return "", rawerr.Errorf(rawerr.UnreadableFile, op, "no %s directory configured for '%s'", annotation, name)
	}

	path := filepath.Join(dir, base)
	if rel, err := filepath.Rel(dir, path); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", rawerr.Errorf(rawerr.UnreadableFile, op, "'%s' is not inside the %s directory", name, annotation)
	}
	return path, nil
}

func (r DirResolver) Exists(name string) bool {
	path, err := r.Resolve(name)
	if err != nil {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// List returns the regular files in InputDir, sorted.
func (r DirResolver) List() ([]string, error) {
	contents, err := ioutil.ReadDir(r.InputDir)
	if err != nil {
		return nil, fmt.Errorf("readdir '%s': %v", r.InputDir, err)
	}

	files := []string{}
	for _, fi := range contents {
		if fi.Mode().IsRegular() {
			files = append(files, fi.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
