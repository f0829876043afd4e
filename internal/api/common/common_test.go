package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, "unknown flag", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown flag", body.Error)
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	type payload struct {
		Route string `yaml:"route"`
		Value bool   `yaml:"value"`
	}

	tests := []struct {
		name    string
		body    string
		want    payload
		wantErr string
	}{
		{name: "empty body", body: "", want: payload{Route: "unchanged"}},
		{name: "json", body: `{"route":"/main/hosts","value":true}`, want: payload{Route: "/main/hosts", Value: true}},
		{name: "yaml", body: "route: /main/alerts\n", want: payload{Route: "/main/alerts"}},
		{name: "malformed", body: `{"route": [`, wantErr: "invalid request body"},
		{name: "too large", body: strings.Repeat("a", maxBodyBytes+1), wantErr: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := payload{Route: "unchanged"}
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			err := DecodeBody(req, &got)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr string
	}{
		{name: "plain", value: "c6401.ambari.apache.org", want: "c6401.ambari.apache.org"},
		{name: "encoded colon", value: "host%3A8080", want: "host:8080"},
		{name: "empty", value: "", wantErr: "host cannot be empty"},
		{name: "only spaces", value: "%20%20", wantErr: "host cannot be empty"},
		{name: "inner space", value: "a%20b", wantErr: "host cannot contain whitespace"},
		{name: "bad encoding", value: "a%zz", wantErr: "invalid URL encoding in host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("host", tt.value)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, err := URLParam(req, "host")
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
