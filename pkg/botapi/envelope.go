package botapi

import "encoding/json"

// Response is the JSON envelope of every Bot API reply.
type Response struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// ResponseParameters carries the retry and migration hints of a failed call.
type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// NewOKResponse wraps a successful result.
func NewOKResponse(result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{OK: true, Result: raw}, nil
}

// NewErrorResponse converts err into a failed envelope. Errors that are not
// *Error carry no platform code and become 400 Bad Request.
func NewErrorResponse(err error) *Response {
	apiErr, ok := AsError(err)
	if !ok {
		return &Response{ErrorCode: 400, Description: "Bad Request: " + err.Error()}
	}
	code := apiErr.Code
	if code == 0 {
		code = 400
	}
	desc := apiErr.Description
	if desc == "" {
		desc = "Bad Request: " + string(apiErr.Kind)
	}
	return &Response{
		ErrorCode:   code,
		Description: desc,
		Parameters:  apiErr.Parameters(),
	}
}

// Err returns the failure carried by a decoded envelope, or nil when OK.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	e := &Error{Kind: kindForCode(r.ErrorCode), Code: r.ErrorCode, Description: r.Description}
	if r.Parameters != nil {
		e.RetryAfter = r.Parameters.RetryAfter
		e.MigrateToChatID = r.Parameters.MigrateToChatID
		if e.MigrateToChatID != 0 {
			e.Kind = KindMigrated
		}
	}
	return e
}

func kindForCode(code int) ErrorKind {
	switch code {
	case 403:
		return KindPermissionDenied
	case 404:
		return KindUnsupported
	case 429:
		return KindRateLimited
	case 500:
		return KindInternal
	}
	return KindInvalidArgument
}
