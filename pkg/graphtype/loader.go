package graphtype

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/schema"
)

var versionDir = regexp.MustCompile(`^v(\d+)$`)

const (
	schemaSuffix  = ".schema.json"
	mappingSuffix = ".graph-map.yaml"
	styleSheet    = "style.css"
)

// Loader reads the versions of one graph type folder.
//
// Warnings about skipped versions accumulate until ConsumeWarnings is
// called, so a Loader must not run overlapping loads. Use one Loader per
// load, as LoadAll does.
type Loader struct {
	Parsers *mapping.ParserRegistry
	Logger  *log.Logger

	warnings []string
}

// NewLoader creates a loader. Nil arguments select the built-in parsers and
// a discarding logger.
func NewLoader(parsers *mapping.ParserRegistry, logger *log.Logger) *Loader {
	if parsers == nil {
		parsers = mapping.DefaultParsers()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Loader{Parsers: parsers, Logger: logger}
}

// LoadFromFolder loads every version found under dir.
func (l *Loader) LoadFromFolder(dir string) ([]*GraphType, error) {
	types, err := l.LoadFromFS(os.DirFS(dir), ".")
	for _, gt := range types {
		gt.Source = filepath.Join(dir, filepath.FromSlash(gt.Source))
	}
	return types, err
}

// LoadFromFS loads every version found under dir in fsys. Subfolders not
// named v<N> are ignored. A version folder without exactly one schema and
// one mapping file is skipped with a warning; an unregistered mapping
// version, a version mismatch or a malformed schema abort the load.
// Results are sorted by ascending version.
func (l *Loader) LoadFromFS(fsys fs.FS, dir string) ([]*GraphType, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "graph type folder %s", dir)
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var types []*GraphType
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDir.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			l.warn("skipping %s: version number out of range", path.Join(dir, e.Name()))
			continue
		}

		gt, err := l.loadVersion(fsys, path.Join(dir, e.Name()), version)
		if err != nil {
			return nil, err
		}
		if gt != nil {
			types = append(types, gt)
		}
	}

	sort.Slice(types, func(i, j int) bool { return types[i].Version < types[j].Version })
	return types, nil
}

func (l *Loader) loadVersion(fsys fs.FS, dir string, version int) (*GraphType, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var schemas, mappings []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case strings.HasSuffix(name, schemaSuffix):
			schemas = append(schemas, name)
		case strings.HasSuffix(name, mappingSuffix):
			mappings = append(mappings, name)
		}
	}
	if len(schemas) != 1 {
		l.warn("skipping %s: expected exactly one *%s, found %d", dir, schemaSuffix, len(schemas))
		return nil, nil
	}
	if len(mappings) != 1 {
		l.warn("skipping %s: expected exactly one *%s, found %d", dir, mappingSuffix, len(mappings))
		return nil, nil
	}

	mappingPath := path.Join(dir, mappings[0])
	data, err := fs.ReadFile(fsys, mappingPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", mappingPath, err)
	}
	gm, err := l.Parsers.Parse(version, data)
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInvalidMapping
		}
		return nil, errors.Wrap(code, err, "load %s", mappingPath)
	}
	if gm.Map.Version != version {
		return nil, errors.New(errors.ErrCodeMappingVersionMismatch,
			"%s declares map.version %d inside folder v%d", mappingPath, gm.Map.Version, version)
	}

	schemaPath := path.Join(dir, schemas[0])
	raw, err := fs.ReadFile(fsys, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schemaPath, err)
	}
	sch, err := schema.Compile(schemas[0], raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "load %s", schemaPath)
	}

	var css string
	switch b, err := fs.ReadFile(fsys, path.Join(dir, styleSheet)); {
	case err == nil:
		css = string(b)
	case !stderrors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path.Join(dir, styleSheet), err)
	}

	l.Logger.Debug("loaded graph type", "id", gm.Map.ID, "version", version, "dir", dir)
	gt := &GraphType{
		ID:           gm.Map.ID,
		Version:      version,
		FilePatterns: FilePatterns(gm.Map.ID),
		Schema:       sch,
		Mapping:      gm,
		StyleSheet:   css,
		Source:       dir,
	}
	gt.Digest = digest(gt)
	return gt, nil
}

// LoadMappingFromString parses an isolated mapping with the loader's
// parsers.
func (l *Loader) LoadMappingFromString(text string, version int) (*mapping.GraphMapping, error) {
	return l.Parsers.Parse(version, []byte(text))
}

// ConsumeWarnings returns the warnings collected so far and clears them.
func (l *Loader) ConsumeWarnings() []string {
	w := l.warnings
	l.warnings = nil
	return w
}

func (l *Loader) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.warnings = append(l.warnings, msg)
	l.Logger.Warn(msg)
}

// LoadResult is the outcome of LoadAll.
type LoadResult struct {
	Types    []*GraphType
	Warnings []string
}

// LoadAll loads every graph type folder directly below root in fsys. Each
// folder gets its own Loader and folders load concurrently. The first fatal
// error cancels the remaining loads.
func LoadAll(ctx context.Context, fsys fs.FS, root string, parsers *mapping.ParserRegistry, logger *log.Logger) (*LoadResult, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "graph type root %s", root)
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var (
		mu  sync.Mutex
		out LoadResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := path.Join(root, e.Name())
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l := NewLoader(parsers, logger)
			types, err := l.LoadFromFS(fsys, dir)
			if err != nil {
				return err
			}
			mu.Lock()
			out.Types = append(out.Types, types...)
			out.Warnings = append(out.Warnings, l.ConsumeWarnings()...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortTypes(out.Types)
	sort.Strings(out.Warnings)
	return &out, nil
}

func sortTypes(types []*GraphType) {
	sort.Slice(types, func(i, j int) bool {
		if types[i].ID != types[j].ID {
			return types[i].ID < types[j].ID
		}
		return types[i].Version < types[j].Version
	})
}
