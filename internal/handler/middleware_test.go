package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodOverride(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        string
	}{
		{"query PUT", http.MethodPost, "/x?_method=PUT", "", "", http.MethodPut},
		{"query lowercase", http.MethodPost, "/x?_method=delete", "", "", http.MethodDelete},
		{"form field", http.MethodPost, "/x", "application/x-www-form-urlencoded", "_method=PUT&a=b", http.MethodPut},
		{"multipart body ignored", http.MethodPost, "/x", "multipart/form-data; boundary=zz", "--zz--", http.MethodPost},
		{"GET untouched", http.MethodGet, "/x?_method=PUT", "", "", http.MethodGet},
		{"unknown method", http.MethodPost, "/x?_method=TRACE", "", "", http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Method
			}))

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			require.Equal(t, tt.want, got)
		})
	}
}
