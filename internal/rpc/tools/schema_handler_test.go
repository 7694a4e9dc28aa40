package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/tools"
)

func TestSchemaHandler(t *testing.T) {
	reg := tools.NewRegistry(nil, nil)
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "read_file",
		Description: "read a file",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "", nil
		},
	}))

	h := SchemaHandler{Registry: reg}
	req := httptest.NewRequest(http.MethodGet, "/tools/schemas", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var schemas []llm.ToolSchema
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&schemas))
	require.Len(t, schemas, 1)
	require.Equal(t, "read_file", schemas[0].Function.Name)
}

func TestSchemaHandlerRejectsPost(t *testing.T) {
	h := SchemaHandler{Registry: tools.NewRegistry(nil, nil)}
	req := httptest.NewRequest(http.MethodPost, "/tools/schemas", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
