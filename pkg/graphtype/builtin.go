package graphtype

import (
	"context"
	"embed"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/yamlviz/pkg/mapping"
)

//go:embed builtin
var builtinFS embed.FS

// Builtin is the source label of graph types shipped with yamlviz.
const Builtin = "builtin"

// LoadBuiltin loads the graph types embedded in the binary: flowchart,
// state-machine, er-diagram and class-diagram.
func LoadBuiltin(ctx context.Context, logger *log.Logger) (*LoadResult, error) {
	res, err := LoadAll(ctx, builtinFS, Builtin, mapping.DefaultParsers(), logger)
	if err != nil {
		return nil, err
	}
	for _, gt := range res.Types {
		gt.Source = Builtin + ":" + strings.TrimPrefix(gt.Source, Builtin+"/")
	}
	return res, nil
}
