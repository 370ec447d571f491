package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds the request body kept for PATCH null detection.
const maxBodyBytes = 1 << 20

type rawBodyKey struct{}

// captureBody keeps a copy of the request body in the context so handlers
// can tell an absent field from an explicit null.
func captureBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		r.Body.Close()
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable body", nil))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(data))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), rawBodyKey{}, data)))
	})
}

func rawBody(ctx context.Context) []byte {
	data, _ := ctx.Value(rawBodyKey{}).([]byte)
	return data
}

// explicitNull reports whether the JSON body carried field with a null value.
func explicitNull(ctx context.Context, field string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawBody(ctx), &fields); err != nil {
		return false
	}
	raw, ok := fields[field]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func specURL(basePath string) string {
	return path.Join("/", basePath, "openapi.json")
}

// registerOpenAPI serves the document under the base path. Every operation
// gets the error envelope as its default response and writes are marked
// bearer protected.
func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(specURL(basePath), func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func decorateOpenAPI(oas *huma.OpenAPI) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	errorResponse := &huma.Response{
		Description: "Error envelope",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	bearer := []map[string][]string{{"bearerAuth": {}}}
	for _, item := range oas.Paths {
		reads := []*huma.Operation{item.Get, item.Head, item.Options}
		writes := []*huma.Operation{item.Post, item.Put, item.Patch, item.Delete}
		for i, ops := range [][]*huma.Operation{reads, writes} {
			for _, op := range ops {
				if op == nil {
					continue
				}
				if op.Responses == nil {
					op.Responses = map[string]*huma.Response{}
				}
				op.Responses["default"] = errorResponse
				if i == 1 {
					op.Security = bearer
				}
			}
		}
	}
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>SkyTrack API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
<script>SwaggerUIBundle({url: "{{SPEC}}", dom_id: "#docs"});</script>
</body>
</html>`

func registerDocs(r chi.Router, basePath string) {
	page := bytes.ReplaceAll([]byte(docsPage), []byte("{{SPEC}}"), []byte(specURL(basePath)))
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
}
