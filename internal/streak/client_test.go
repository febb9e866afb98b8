package streak

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL+"/", "secret-key", ts.Client())
}

func TestClient_SendsBasicAuth(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "secret-key" || pass != "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/pipelines", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"key":"p1","name":"Partners 2026 BE"},{"key":"p2","name":"Other"}]`))
	})

	pipelines, err := c.ListPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	assert.Equal(t, "p1", pipelines[0].Key)
	assert.Equal(t, "Partners 2026 BE", pipelines[0].Name)
}

func TestClient_GetPipelineDecodesStagesAndFields(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipelines/p1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"key":"p1","name":"Partners",
			"stages":{"5001":{"key":"5001","name":"Lead"},"5002":{"key":"5002","name":"Signed"}},
			"stageOrder":["5002","5001"],
			"fields":[
				{"key":"1001","name":"Partnership","fieldOptions":[{"key":"9001","name":"Ultimate"}]},
				{"key":"1002","name":"Level","dropdownSettings":{"items":[{"key":"1","name":"One"}]}}
			]}`))
	})

	p, err := c.GetPipeline(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Signed", p.StageName("5002"))
	assert.Equal(t, "9999", p.StageName("9999"))
	assert.Equal(t, "Unknown Stage", p.StageName(""))
	assert.Equal(t, []string{"5002", "5001"}, p.OrderedStageKeys())
	require.Len(t, p.Fields, 2)
	assert.Equal(t, []FieldOption{{Key: "9001", Name: "Ultimate"}}, p.Fields[0].Options())
	assert.Equal(t, []FieldOption{{Key: "1", Name: "One"}}, p.Fields[1].Options())
}

func TestClient_NotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Entity not found"}`, http.StatusNotFound)
	})

	_, err := c.GetBox(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/boxes/missing", apiErr.Path)
	assert.Contains(t, apiErr.Body, "Entity not found")
}

func TestClient_ServerErrorIsNotNotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, strings.Repeat("x", 4096))
	})

	_, err := c.ListBoxes(context.Background(), "p1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Len(t, apiErr.Body, maxErrorBody)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestClient_UpdateBoxField(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/boxes/b1/fields/1003", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"key":"1003","value":true}`))
	})

	err := c.UpdateBoxField(context.Background(), "b1", "1003", true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": true}, got)
}

func TestClient_EscapesKeys(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipelines/a%2Fb/boxes", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`[]`))
	})

	boxes, err := c.ListBoxes(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestBox_KeepsUnmodelledAttributes(t *testing.T) {
	in := `{"key":"b1","name":"Acme","creatorKey":"u1","fields":{"1001":"9001","1004":1712345678901},"stageKey":"5001"}`

	var b Box
	require.NoError(t, json.Unmarshal([]byte(in), &b))
	assert.Equal(t, "b1", b.Key)
	assert.Equal(t, json.Number("1712345678901"), b.Fields["1004"])
	require.Contains(t, b.Extra, "creatorKey")

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestNew_Defaults(t *testing.T) {
	c := New("", "k", nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}
