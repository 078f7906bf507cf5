package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smarter-sh/smarter-sub001/internal/util"
)

// maxAPIBody caps how much of an API response is read.
const maxAPIBody = 1 << 20

// API calls an HTTP endpoint. The endpoint and header values are templates
// rendered with the call arguments; for GET requests arguments not used by
// the endpoint template are sent as query parameters, otherwise as a JSON
// body.
type API struct {
	base
	client *http.Client
}

// Invoke implements tool.Plugin.
func (a *API) Invoke(ctx context.Context, args map[string]any) (any, error) {
	endpoint, err := util.RenderTemplate(a.def.Endpoint, args)
	if err != nil {
		return nil, invokeError(a.def.Name, "render endpoint: %v", err)
	}
	method := strings.ToUpper(a.def.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method == http.MethodGet {
		endpoint, err = withQuery(endpoint, a.def.Endpoint, args)
		if err != nil {
			return nil, invokeError(a.def.Name, "endpoint: %v", err)
		}
	} else {
		payload, err := json.Marshal(args)
		if err != nil {
			return nil, invokeError(a.def.Name, "encode body: %v", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, invokeError(a.def.Name, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.def.Headers {
		rendered, err := util.RenderTemplate(v, args)
		if err != nil {
			return nil, invokeError(a.def.Name, "render header %s: %v", k, err)
		}
		req.Header.Set(k, rendered)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, invokeError(a.def.Name, "read response: %v", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, invokeError(a.def.Name, "endpoint returned status %d", resp.StatusCode)
	}

	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		return decoded, nil
	}
	return string(raw), nil
}

// withQuery appends arguments the endpoint template does not reference.
func withQuery(endpoint, tmpl string, args map[string]any) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range args {
		if strings.Contains(tmpl, "."+k) {
			continue
		}
		q.Set(k, argString(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
