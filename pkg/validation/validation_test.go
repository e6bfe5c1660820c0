package validation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRequest struct {
	Graph  string   `json:"graph" validate:"required,graph_name"`
	Entry  string   `json:"entry" validate:"omitempty,node_id"`
	Steps  int      `json:"steps" validate:"min=0,max=100"`
	Tags   []string `json:"tags" validate:"dive,required"`
	Hidden string   `json:"-" validate:"max=3"`
}

type bounded struct {
	Name string `json:"name" validate:"required"`
	Low  int    `json:"low"`
	High int    `json:"high"`
}

func (b bounded) Validate() error {
	if b.Low > b.High {
		return Errors{{Field: "low", Value: b.Low, Message: "low must not exceed high"}}
	}
	return nil
}

func TestErrors_Error(t *testing.T) {
	errs := Errors{
		{Field: "graph", Message: "graph is a required field"},
		{Field: "steps", Value: -1, Message: "steps must be 0 or greater"},
	}
	assert.Equal(t, "validation failed: graph is a required field; steps must be 0 or greater", errs.Error())
	assert.Equal(t, "graph is a required field", errs[0].Error())
}

func TestTags(t *testing.T) {
	valid := runRequest{Graph: "travel-planner", Entry: "local_expert", Steps: 5, Tags: []string{"cli"}}
	require.NoError(t, Tags(valid))

	tests := []struct {
		name    string
		mutate  func(*runRequest)
		field   string
		message string
	}{
		{"missing graph", func(r *runRequest) { r.Graph = "" }, "graph", "graph is a required field"},
		{"upper case graph", func(r *runRequest) { r.Graph = "Travel" }, "graph", "graph must be a graph name"},
		{"graph name too long", func(r *runRequest) { r.Graph = strings.Repeat("g", 101) }, "graph", "graph must be a graph name"},
		{"node id with spaces", func(r *runRequest) { r.Entry = "local expert" }, "entry", "entry must be a node id"},
		{"too many steps", func(r *runRequest) { r.Steps = 101 }, "steps", "steps must be 100 or less"},
		{"blank tag", func(r *runRequest) { r.Tags = []string{"cli", ""} }, "tags[1]", "is a required field"},
		{"json-hidden field keeps Go name", func(r *runRequest) { r.Hidden = "long" }, "Hidden", "Hidden must be a maximum of 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)

			var errs Errors
			require.ErrorAs(t, Tags(r), &errs)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Contains(t, errs[0].Message, tt.message)
		})
	}
}

func TestStruct_RunsCheckerAfterTags(t *testing.T) {
	assert.NoError(t, Struct(bounded{Name: "x", Low: 1, High: 2}))

	var errs Errors
	require.ErrorAs(t, Struct(bounded{Name: "x", Low: 3, High: 2}), &errs)
	assert.Equal(t, "low", errs[0].Field)

	// Validate is skipped while tags fail
	require.ErrorAs(t, Struct(bounded{Low: 3, High: 2}), &errs)
	assert.Equal(t, "name", errs[0].Field)

	assert.NoError(t, Tags(bounded{Name: "x", Low: 3, High: 2}))
}

func TestVar(t *testing.T) {
	tests := []struct {
		value   string
		tag     string
		wantErr string
	}{
		{"", "omitempty,number", ""},
		{"20", "omitempty,number", ""},
		{"-1", "omitempty,number", "limit must be a valid number"},
		{"ten", "omitempty,number", "limit must be a valid number"},
		{"failed", "omitempty,oneof=completed failed", ""},
		{"paused", "omitempty,oneof=completed failed", "limit must be one of [completed failed]"},
	}
	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.value, func(t *testing.T) {
			err := Var("limit", tt.value, tt.tag)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var errs Errors
			require.ErrorAs(t, err, &errs)
			assert.Equal(t, "limit", errs[0].Field)
			assert.Equal(t, tt.wantErr, errs[0].Message)
		})
	}
}

func TestNamePredicates(t *testing.T) {
	assert.True(t, IsNodeID("node-1"))
	assert.True(t, IsNodeID("Local_Expert"))
	assert.False(t, IsNodeID("node@1"))
	assert.False(t, IsNodeID(""))
	assert.True(t, IsGraphName("travel.v2"))
	assert.False(t, IsGraphName("-travel"))
}

func decodeErrors(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestMiddleware_JSON(t *testing.T) {
	var seen *runRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = Body[runRequest](r.Context())
		w.WriteHeader(http.StatusOK)
	})
	strict := NewMiddleware().JSON(runRequest{})(handler)

	t.Run("valid body reaches handler", func(t *testing.T) {
		rr := httptest.NewRecorder()
		strict.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"graph":"travel","steps":3}`)))
		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "travel", seen.Graph)
		assert.Equal(t, 3, seen.Steps)
	})

	tests := []struct {
		name    string
		mw      http.Handler
		body    string
		code    int
		count   int
		message string
	}{
		{"every failed rule reported", strict, `{"graph":"Bad Name","steps":-1}`, http.StatusBadRequest, 2, "graph must be a graph name"},
		{"unknown field rejected", strict, `{"graph":"travel","thread":"x"}`, http.StatusBadRequest, 1, "invalid JSON"},
		{"malformed json", strict, `{"graph":`, http.StatusBadRequest, 1, "invalid JSON"},
		{"unknown field allowed", NewMiddleware(AllowUnknownFields()).JSON(runRequest{})(handler), `{"graph":"travel","thread":"x"}`, http.StatusOK, 0, ""},
		{"errors capped", NewMiddleware(WithMaxErrors(1)).JSON(runRequest{})(handler), `{"graph":"","steps":500}`, http.StatusBadRequest, 2, "graph is a required field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.mw.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body)))
			require.Equal(t, tt.code, rr.Code)
			if tt.code == http.StatusOK {
				return
			}
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			body := decodeErrors(t, rr)
			assert.Equal(t, tt.count, body.Count)
			require.NotEmpty(t, body.Errors)
			assert.Contains(t, body.Errors[0].Message, tt.message)
		})
	}

	t.Run("capped body lists only the cap", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewMiddleware(WithMaxErrors(1)).JSON(runRequest{})(handler).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"graph":"","steps":500}`)))
		assert.Len(t, decodeErrors(t, rr).Errors, 1)
	})

	t.Run("checker failure", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewMiddleware().JSON(bounded{})(handler).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x","low":5,"high":1}`)))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "low", decodeErrors(t, rr).Errors[0].Field)
	})
}

func TestMiddleware_Query(t *testing.T) {
	handler := NewMiddleware().Query(map[string]string{
		"graph":  "omitempty,graph_name",
		"status": "omitempty,oneof=completed failed cancelled",
		"limit":  "omitempty,number",
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		target string
		code   int
		fields []string
	}{
		{"/runs", http.StatusOK, nil},
		{"/runs?graph=travel-planner&status=failed&limit=10", http.StatusOK, nil},
		{"/runs?limit=ten", http.StatusBadRequest, []string{"limit"}},
		{"/runs?status=paused&graph=Travel", http.StatusBadRequest, []string{"graph", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, tt.code, rr.Code)
			if tt.fields == nil {
				return
			}
			var fields []string
			for _, fe := range decodeErrors(t, rr).Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
