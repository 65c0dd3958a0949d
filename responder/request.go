package responder

import (
	"context"
	"errors"
	"net/http"

	"github.com/drblury/stsgateway/jsonutil"
)

// ReadRequestBody decodes the request body into v through the codec. A
// malformed or mismatched body is answered with 400 and false is returned.
func (r *Responder) ReadRequestBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := r.decodeRequestBody(req, v); err != nil {
		r.HandleBadRequestError(w, req, err, "failed to parse request body")
		return false
	}
	return true
}

func (r *Responder) decodeRequestBody(req *http.Request, v any) error {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return &jsonutil.DeserializationError{Err: errors.New("request body is required")}
	}
	return r.codec.Decode(req.Body, v)
}

func requestInstance(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.RequestURI()
}

func requestContext(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}
	return req.Context()
}
