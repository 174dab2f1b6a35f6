package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/dataflow"
	"github.com/meikuraledutech/dataflow/memory"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	return newApp(memory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, app *fiber.App, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp.StatusCode
}

type addNodeResponse struct {
	ID   dataflow.NodeID `json:"id"`
	Flow dataflow.Flow   `json:"flow"`
}

func createFlow(t *testing.T, app *fiber.App) string {
	t.Helper()
	var f dataflow.Flow
	status := do(t, app, http.MethodPost, "/flows", map[string]string{"name": "demo"}, &f)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, f.ID)
	return f.ID
}

func addNode(t *testing.T, app *fiber.App, flowID string) dataflow.NodeID {
	t.Helper()
	var out addNodeResponse
	status := do(t, app, http.MethodPost, "/flows/"+flowID+"/nodes", dataflow.Position{X: 10, Y: 20}, &out)
	require.Equal(t, http.StatusCreated, status)
	return out.ID
}

func TestEditAndCompile(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)

	a := addNode(t, app, id)
	b := addNode(t, app, id)
	assert.Equal(t, dataflow.NodeID(1), a)
	assert.Equal(t, dataflow.NodeID(2), b)

	var f dataflow.Flow
	status := do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: a, To: b}, &f)
	require.Equal(t, http.StatusCreated, status)

	var def dataflow.Definition
	status = do(t, app, http.MethodGet, "/flows/"+id+"/compiled", nil, &def)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []dataflow.PositionEdge{{From: 0, To: 1, Name: "node1"}}, def.Edges)
	assert.Equal(t, []int{0, 1}, def.Toposorted)
	assert.Equal(t, "node0", def.Nodes[0].Name)

	var got dataflow.Flow
	status = do(t, app, http.MethodGet, "/flows/"+id, nil, &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got.Source.Nodes, 2)
	assert.Equal(t, dataflow.Position{X: 10, Y: 20}, got.Source.Nodes[1].Position)
}

func TestEdgeErrors(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)
	a := addNode(t, app, id)
	b := addNode(t, app, id)

	status := do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: a, To: 99}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: a, To: b}, nil))
	status = do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: b, To: a}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status = do(t, app, http.MethodDelete, "/flows/"+id+"/edges?from=x&to=1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = do(t, app, http.MethodPost, "/flows/missing/edges", dataflow.Edge{From: a, To: b}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteNodeCascades(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)
	a := addNode(t, app, id)
	b := addNode(t, app, id)
	c := addNode(t, app, id)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: a, To: b}, nil))
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: b, To: c}, nil))

	var f dataflow.Flow
	status := do(t, app, http.MethodDelete, "/flows/"+id+"/nodes/2", nil, &f)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, f.Compiled.Edges)
	assert.Len(t, f.Compiled.Toposorted, 2)

	status = do(t, app, http.MethodDelete, "/flows/"+id+"/edges?from=1&to=3", nil, &f)
	require.Equal(t, http.StatusOK, status)
}

func TestUpdateNodeAndValidate(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)
	addNode(t, app, id)
	b := addNode(t, app, id)

	cfg := dataflow.NodeConfig{Name: "node0", Function: dataflow.Function{Kind: "js", Code: "1"}}
	var f dataflow.Flow
	status := do(t, app, http.MethodPut, "/flows/"+id+"/nodes/2", cfg, &f)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, cfg, f.Compiled.Nodes[1])

	status = do(t, app, http.MethodGet, "/flows/"+id+"/compiled", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	meta := dataflow.NodeMeta{Position: dataflow.Position{X: 5}, SplitPos: 30, LastOutput: "ok"}
	status = do(t, app, http.MethodPut, "/flows/"+id+"/nodes/2/meta", meta, &f)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, b, f.Source.Nodes[1].ID)
	assert.Equal(t, "ok", f.Source.Nodes[1].LastOutput)

	status = do(t, app, http.MethodPut, "/flows/"+id+"/nodes/9", cfg, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReplaceFlowCanonicalizes(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)

	body := dataflow.Flow{
		Name: "imported",
		Compiled: dataflow.Definition{
			Nodes:      []dataflow.NodeConfig{{Name: "a"}, {Name: "b"}},
			Edges:      []dataflow.PositionEdge{{From: 1, To: 0, Name: "a"}, {From: 0, To: 7, Name: "stale"}},
			Toposorted: []int{0, 1},
		},
		Source: dataflow.Source{Nodes: []dataflow.NodeMeta{{ID: 4}, {ID: 9}}},
	}
	var f dataflow.Flow
	status := do(t, app, http.MethodPut, "/flows/"+id, body, &f)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []dataflow.PositionEdge{{From: 1, To: 0, Name: "a"}}, f.Compiled.Edges)
	assert.Equal(t, []int{1, 0}, f.Compiled.Toposorted)

	body.Compiled.Edges = append(body.Compiled.Edges, dataflow.PositionEdge{From: 0, To: 1})
	status = do(t, app, http.MethodPut, "/flows/"+id, body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status = do(t, app, http.MethodPut, "/flows/missing", dataflow.Flow{}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListDeleteAndDot(t *testing.T) {
	app := newTestApp(t)
	id := createFlow(t, app)
	a := addNode(t, app, id)
	b := addNode(t, app, id)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/flows/"+id+"/edges", dataflow.Edge{From: a, To: b}, nil))

	req := httptest.NewRequest(http.MethodGet, "/flows/"+id+"/dot", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/vnd.graphviz"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "digraph")

	var flows []dataflow.Flow
	require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/flows", nil, &flows))
	assert.Len(t, flows, 1)

	assert.Equal(t, http.StatusNoContent, do(t, app, http.MethodDelete, "/flows/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/flows/"+id, nil, nil))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(io.EOF))
	assert.Equal(t, fiber.StatusUnprocessableEntity, statusFor(dataflow.ErrDuplicateName))
}
