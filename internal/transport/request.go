package transport

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const maxMemory = 32 << 20

var errBody = errors.New("can't parse request body")

// splitPath extracts the token and method from `/bot<token>/<method>`.
func splitPath(path string) (token, method string, ok bool) {
	rest, found := strings.CutPrefix(path, "/bot")
	if !found {
		return "", "", false
	}
	token, method, found = strings.Cut(rest, "/")
	if !found || token == "" || method == "" || strings.Contains(method, "/") {
		return "", "", false
	}
	return token, method, true
}

// parseRequest turns the query string and body of req into call parameters. Body
// values win over query values of the same name. Form and query values stay strings;
// multipart file parts become botapi.InputFile placeholders.
func parseRequest(req *http.Request) (botapi.Params, error) {
	params := botapi.Params{}
	mergeValues(params, req.URL.Query())
	if req.Body == nil || req.Method == http.MethodGet || req.Method == http.MethodHead {
		return params, nil
	}

	ct := req.Header.Get("Content-Type")
	mediaType := ""
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "multipart/form-data":
		if err := req.ParseMultipartForm(maxMemory); err != nil {
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		defer req.MultipartForm.RemoveAll()
		mergeValues(params, req.MultipartForm.Value)
		for name, headers := range req.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			h := headers[0]
			data, err := readPart(h)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errBody, err)
			}
			params[name] = botapi.InputFile{
				Name:        h.Filename,
				Size:        h.Size,
				ContentType: h.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	case "application/x-www-form-urlencoded":
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		mergeValues(params, values)
	default:
		// JSON, or a bare body without a content type.
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		body, err := botapi.DecodeParams(data)
		if err != nil {
			if mediaType != "" && mediaType != "application/json" {
				return nil, fmt.Errorf("%w: unsupported content type %q", errBody, mediaType)
			}
			return nil, fmt.Errorf("%w: %v", errBody, err)
		}
		for k, v := range body {
			params[k] = v
		}
	}
	return params, nil
}

func mergeValues(params botapi.Params, values map[string][]string) {
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxMemory))
}
