package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// maxBodyBytes bounds a convert request.
const maxBodyBytes = 4 << 20

// GraphTypeInfo describes one registered graph type. MermaidType is the
// normalized dialect name (flowchart, state-machine, er-diagram or
// class-diagram), not the Mermaid keyword the mapping was written with.
type GraphTypeInfo struct {
	ID             string   `json:"id"`
	Version        int      `json:"version"`
	Key            string   `json:"key"`
	MermaidType    string   `json:"mermaidType"`
	FilePatterns   []string `json:"filePatterns"`
	CustomRenderer string   `json:"customRenderer,omitempty"`
	Source         string   `json:"source,omitempty"`
}

func (s *Server) handleGraphTypes(w http.ResponseWriter, _ *http.Request) {
	list := s.opts.Types.List()
	out := make([]GraphTypeInfo, 0, len(list))
	for _, gt := range list {
		out = append(out, GraphTypeInfo{
			ID:             gt.ID,
			Version:        gt.Version,
			Key:            gt.Key(),
			MermaidType:    gt.Mapping.Map.MermaidType,
			FilePatterns:   gt.FilePatterns,
			CustomRenderer: gt.Mapping.CustomRenderer,
			Source:         gt.Source,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RefreshResponse is the reply of POST /graph-types/refresh.
type RefreshResponse struct {
	Count    int      `json:"count"`
	Warnings []string `json:"warnings"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	warnings, err := pipeline.RefreshGraphTypes(r.Context(), s.opts.Types, s.opts.GraphTypeDirs, s.logger)
	if err != nil {
		writeError(w, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Count: s.opts.Types.Len(), Warnings: warnings})
}

func (s *Server) handleDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Sessions.Paths())
}

// handleFields returns the resolved field schemas of a graph type, the
// latest version when the route names none. With a ?path= query (dotted,
// "nodes.0") only the schema at that document path is returned.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	gt, err := s.lookupGraphType(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if p := r.URL.Query().Get("path"); p != "" {
		f, ok := schema.ResolveAt(gt.Schema, yamlcst.ParsePath(p))
		if !ok {
			writeError(w, errors.New(errors.ErrCodeNotFound, "no field schema at %s", p))
			return
		}
		writeJSON(w, http.StatusOK, f)
		return
	}
	fields := schema.Resolve(gt.Schema)
	if fields == nil {
		fields = []schema.FieldSchema{}
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) lookupGraphType(r *http.Request) (*graphtype.GraphType, error) {
	id := chi.URLParam(r, "id")
	v := chi.URLParam(r, "version")
	if v == "" {
		gt, ok := s.opts.Types.Latest(id)
		if !ok {
			return nil, errors.New(errors.ErrCodeDomainNotFound, "graph type %s is not registered", id)
		}
		return gt, nil
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid version %q", v)
	}
	gt, ok := s.opts.Types.Get(id, version)
	if !ok {
		return nil, errors.New(errors.ErrCodeDomainNotFound, "graph type %s@v%d is not registered", id, version)
	}
	return gt, nil
}

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	// Path is a file name hint used to pick the graph type.
	Path      string   `json:"path,omitempty"`
	Text      string   `json:"text"`
	GraphType string   `json:"graphType,omitempty"`
	Formats   []string `json:"formats,omitempty"`
	Detailed  bool     `json:"detailed,omitempty"`
	Scale     float64  `json:"scale,omitempty"`
	Refresh   bool     `json:"refresh,omitempty"`
}

// ConvertResponse is the reply of POST /convert. PNG and PDF artifacts are
// base64 encoded; all other formats are returned as text.
type ConvertResponse struct {
	GraphType   string             `json:"graphType"`
	ContentHash string             `json:"contentHash"`
	Result      *graph.Result      `json:"result"`
	Artifacts   map[string]string  `json:"artifacts"`
	Cache       pipeline.CacheInfo `json:"cache"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if req.Text == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "text is required"))
		return
	}
	if err := pipeline.ValidateFormats(req.Formats); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "formats"))
		return
	}

	res, err := s.opts.Runner.Execute(r.Context(), pipeline.Options{
		Path:      req.Path,
		Text:      []byte(req.Text),
		GraphType: req.GraphType,
		Formats:   req.Formats,
		Detailed:  req.Detailed,
		Scale:     req.Scale,
		Refresh:   req.Refresh,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	artifacts := make(map[string]string, len(res.Artifacts))
	for format, data := range res.Artifacts {
		switch format {
		case pipeline.FormatPNG, pipeline.FormatPDF:
			artifacts[format] = base64.StdEncoding.EncodeToString(data)
		default:
			artifacts[format] = string(data)
		}
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		GraphType:   res.GraphType.Key(),
		ContentHash: res.ContentHash,
		Result:      res.Conversion,
		Artifacts:   artifacts,
		Cache:       res.CacheInfo,
	})
}
