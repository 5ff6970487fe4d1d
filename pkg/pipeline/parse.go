package pipeline

import (
	"fmt"
	"os"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// ReadSource returns the document text of opts, reading Path when no
// text was given. Path is used as is; callers serving untrusted input
// check it with errors.ValidatePath first.
func ReadSource(opts Options) ([]byte, error) {
	if len(opts.Text) > 0 || opts.Path == "" {
		return opts.Text, nil
	}
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", opts.Path)
		}
		return nil, fmt.Errorf("read %s: %w", opts.Path, err)
	}
	return data, nil
}

// Resolve picks the graph type for a document. A forced graph type in
// opts takes precedence over the document's own declaration.
func Resolve(reg *graphtype.Registry, text []byte, opts Options) (*graphtype.GraphType, error) {
	if reg == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no graph type registry")
	}
	if opts.GraphType != "" {
		forced := []byte(graphtype.DeclarationKey + ": " + quoteDecl(opts.GraphType) + "\n")
		return reg.ResolveForDocument(graphtype.DocumentRef{Path: opts.Path, Text: forced})
	}
	return reg.ResolveForDocument(graphtype.DocumentRef{Path: opts.Path, Text: text})
}

// quoteDecl keeps a forced declaration a plain YAML string.
func quoteDecl(s string) string {
	return yamlcst.FormatScalar(s, nil)
}

// Parse reads the document text into a position-tracking tree.
func Parse(text []byte) (*yamlcst.Document, error) {
	return yamlcst.Parse(text)
}
