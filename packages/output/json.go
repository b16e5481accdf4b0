package output

import (
	"encoding/json"
	"io"

	"github.com/quiverhq/quiver/packages/store"
)

// JSONResponse is the machine-readable projection of a captured
// response.
type JSONResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	StatusCode    int               `json:"statusCode"`
	StatusMessage string            `json:"statusMessage"`
	ContentType   string            `json:"contentType,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	Error         string            `json:"error,omitempty"`
	ElapsedMs     int64             `json:"elapsedMs"`
	BytesRead     int64             `json:"bytesRead"`
}

// WriteJSON writes the response as indented JSON.
func WriteJSON(w io.Writer, resp *store.Response) error {
	out := JSONResponse{
		ID:            resp.ID,
		URL:           resp.URL,
		StatusCode:    resp.StatusCode,
		StatusMessage: resp.StatusMessage,
		ContentType:   resp.ContentType,
		Body:          string(resp.Body),
		Error:         resp.Error,
		ElapsedMs:     resp.ElapsedTime.Milliseconds(),
		BytesRead:     resp.BytesRead,
	}
	if len(resp.Headers) > 0 {
		out.Headers = make(map[string]string, len(resp.Headers))
		for _, h := range resp.Headers {
			out.Headers[h.Name] = h.Value
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
