package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/yamlviz/pkg/cache"
	"github.com/matzehuels/yamlviz/pkg/config"
	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/session"
)

const flowDoc = `# release pipeline
graph-type: flowchart
nodes:
  - id: a
    label: Start
  - id: b
    label: Done # last step
edges:
  - from: a
    to: b
`

const brokenDoc = `graph-type: flowchart
nodes:
  - label: nameless
`

// testCLI is a CLI whose config, cache and output stay inside the test.
type testCLI struct {
	*CLI
	dir    string
	status *bytes.Buffer
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendFile
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	c := New(io.Discard, log.DebugLevel)
	c.cfg = cfg

	var status bytes.Buffer
	prev := stdout
	stdout = &status
	t.Cleanup(func() { stdout = prev })

	return &testCLI{CLI: c, dir: dir, status: &status}
}

func (tc *testCLI) write(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(tc.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

// run executes the root command and returns what it wrote to its output.
func (tc *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := tc.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(withLogger(context.Background(), tc.Logger))
	return out.String(), err
}

// =============================================================================
// Helpers
// =============================================================================

func TestParseFormats(t *testing.T) {
	assert.Equal(t, []string{"mermaid"}, parseFormats(""))
	assert.Equal(t, []string{"svg", "png"}, parseFormats("SVG, png,"))
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "deploy.flow.yaml", "deploy.flow"},
		{"", "dir/states.yml", "dir/states"},
		{"", "notes", "notes"},
		{"", "-", "diagram"},
		{"out/deploy.svg", "deploy.flow.yaml", "out/deploy"},
		{"out/deploy", "deploy.flow.yaml", "out/deploy"},
		{"out/deploy.v2", "deploy.flow.yaml", "out/deploy.v2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, basePath(tt.output, tt.input), "basePath(%q, %q)", tt.output, tt.input)
	}
}

func TestParseSets(t *testing.T) {
	edits, err := parseSets([]string{"label=Build", "meta.retries=3", "done=true", `code="7"`, "note="})
	require.NoError(t, err)
	assert.Equal(t, []engine.FieldEdit{
		{Path: "label", Value: "Build"},
		{Path: "meta.retries", Value: 3},
		{Path: "done", Value: true},
		{Path: "code", Value: "7"},
		{Path: "note", Value: ""},
	}, edits)

	for _, bad := range []string{"label", "=x", "meta={a: 1}", "tags=[a, b]"} {
		_, err := parseSets([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestEditMessage(t *testing.T) {
	tests := []struct {
		name    string
		opts    editOpts
		want    *session.Inbound
		wantErr bool
	}{
		{
			name: "set",
			opts: editOpts{node: "a", set: []string{"label=Go"}},
			want: &session.Inbound{Type: session.MsgApplyEdit, NodeID: "a", Edits: []engine.FieldEdit{{Path: "label", Value: "Go"}}},
		},
		{
			name: "add node",
			opts: editOpts{addNode: "c", label: "Review"},
			want: &session.Inbound{Type: session.MsgAddNode, NodeID: "c", Label: "Review"},
		},
		{
			name: "rename",
			opts: editOpts{rename: "a=start"},
			want: &session.Inbound{Type: session.MsgRenameNode, OldID: "a", NewID: "start"},
		},
		{
			name: "connect",
			opts: editOpts{connect: "a=b", label: "ok"},
			want: &session.Inbound{Type: session.MsgAddConnection, From: "a", To: "b", Label: "ok"},
		},
		{
			name: "disconnect",
			opts: editOpts{disconnect: "a:1"},
			want: &session.Inbound{Type: session.MsgDeleteConnection, NodeID: "a", Index: 1},
		},
		{
			name: "direction",
			opts: editOpts{direction: "lr"},
			want: &session.Inbound{Type: session.MsgChangeDirection, Direction: "LR"},
		},
		{name: "nothing", opts: editOpts{}, wantErr: true},
		{name: "two actions", opts: editOpts{deleteNode: "a", duplicate: "b"}, wantErr: true},
		{name: "set without node", opts: editOpts{set: []string{"label=x"}}, wantErr: true},
		{name: "bad rename", opts: editOpts{rename: "a"}, wantErr: true},
		{name: "bad disconnect", opts: editOpts{disconnect: "a:x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.message()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2<<20))
}

// =============================================================================
// Commands
// =============================================================================

func TestConvertToStdout(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "deploy.flow.yaml", flowDoc)

	out, err := tc.run(t, "convert", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "flowchart TB\n"), out)
	assert.Contains(t, out, `a["Start"]`)
	assert.Empty(t, tc.status.String(), "status lines would corrupt piped output")
}

func TestConvertFromStdin(t *testing.T) {
	tc := newTestCLI(t)
	root := tc.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("states:\n  - name: idle\n"))
	root.SetArgs([]string{"convert", "-", "--graph-type", "state-machine", "--no-cache"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "stateDiagram-v2"), out.String())
}

func TestConvertWritesFiles(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "deploy.flow.yaml", flowDoc)

	_, err := tc.run(t, "convert", path, "-f", "json,dot", "-o", filepath.Join(tc.dir, "out", "deploy"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tc.dir, "out", "deploy.json"))
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "flowchart@v1", res["graphType"])

	dot, err := os.ReadFile(filepath.Join(tc.dir, "out", "deploy.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")

	assert.Contains(t, tc.status.String(), "Converted")
	assert.Contains(t, tc.status.String(), "2 nodes")

	fc, err := cache.NewFileCache(tc.cfg.Cache.Dir)
	require.NoError(t, err)
	n, _, err := fc.Stats()
	require.NoError(t, err)
	assert.Positive(t, n, "the conversion result is cached")
}

func TestConvertStrict(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "broken.flow.yaml", brokenDoc)

	_, err := tc.run(t, "convert", path)
	require.NoError(t, err, "schema problems alone do not fail a conversion")

	_, err = tc.run(t, "convert", path, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema error")
}

func TestConvertErrors(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "deploy.flow.yaml", flowDoc)

	_, err := tc.run(t, "convert", path, "-f", "gif")
	assert.ErrorContains(t, err, "invalid format")

	_, err = tc.run(t, "convert", filepath.Join(tc.dir, "missing.flow.yaml"))
	assert.ErrorContains(t, err, "FILE_NOT_FOUND")

	notes := tc.write(t, "notes.yaml", "items: []\n")
	_, err = tc.run(t, "convert", notes)
	assert.ErrorContains(t, err, "DOMAIN_NOT_FOUND")
}

func TestValidate(t *testing.T) {
	tc := newTestCLI(t)
	good := tc.write(t, "deploy.flow.yaml", flowDoc)
	bad := tc.write(t, "broken.flow.yaml", brokenDoc)

	_, err := tc.run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, tc.status.String(), "flowchart@v1")

	tc.status.Reset()
	_, err = tc.run(t, "validate", good, bad)
	assert.ErrorContains(t, err, "1 of 2 document(s) failed validation")
	assert.Contains(t, tc.status.String(), "broken.flow.yaml:3:")

	out, err := tc.run(t, "validate", bad, "--json")
	require.Error(t, err)
	var reports []validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "flowchart@v1", reports[0].GraphType)
	require.NotEmpty(t, reports[0].Errors)
	assert.Equal(t, "/nodes/0", reports[0].Errors[0].Path)
}

func TestTypes(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "types")
	require.NoError(t, err)
	for _, key := range []string{"flowchart@v1", "state-machine@v1", "er-diagram@v1", "class-diagram@v1"} {
		assert.Contains(t, tc.status.String(), key)
	}

	out, err := tc.run(t, "types", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "# flowchart@v1")
	assert.Contains(t, out, "MermaidType")
}

func TestSchema(t *testing.T) {
	tc := newTestCLI(t)

	out, err := tc.run(t, "schema", "flowchart")
	require.NoError(t, err)
	assert.Contains(t, out, "flowchart@v1")
	assert.Contains(t, out, "nodes*")
	assert.Contains(t, out, "TB|TD|BT|LR|RL")

	out, err = tc.run(t, "schema", "flowchart@v1", "nodes.0", "--json")
	require.NoError(t, err)
	var fields []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "object", fields[0]["fieldType"])

	_, err = tc.run(t, "schema", "flowchart", "nodes.0.nope")
	assert.Error(t, err)
	_, err = tc.run(t, "schema", "gantt")
	assert.ErrorContains(t, err, "DOMAIN_NOT_FOUND")
}

func TestEdit(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "deploy.flow.yaml", flowDoc)

	_, err := tc.run(t, "edit", path, "--node", "a", "--set", "label=Begin")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(flowDoc, "label: Start", "label: Begin", 1), string(data))

	out, err := tc.run(t, "edit", path, "--add-node", "c", "--label", "Review", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "id: c")
	assert.Contains(t, out, "# last step")
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(after), "a dry run leaves the file alone")

	_, err = tc.run(t, "edit", path, "--delete-node", "zzz")
	assert.ErrorContains(t, err, "NODE_NOT_FOUND")
}

func TestCacheCommands(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write(t, "deploy.flow.yaml", flowDoc)

	out, err := tc.run(t, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, tc.cfg.Cache.Dir+"\n", out)

	_, err = tc.run(t, "convert", path, "-o", filepath.Join(tc.dir, "deploy"))
	require.NoError(t, err)

	tc.status.Reset()
	_, err = tc.run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, tc.status.String(), tc.cfg.Cache.Dir)

	tc.status.Reset()
	_, err = tc.run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, tc.status.String(), "Cleared")

	tc.status.Reset()
	_, err = tc.run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, tc.status.String(), "Cache is empty")
}

func TestCompletion(t *testing.T) {
	tc := newTestCLI(t)
	out, err := tc.run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "yamlviz")

	_, err = tc.run(t, "completion", "tcsh")
	assert.Error(t, err)
}
