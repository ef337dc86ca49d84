package botapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("chat not found"))

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Error("not-found error must not match ErrPermissionDenied")
	}

	apiErr, ok := AsError(err)
	if !ok {
		t.Fatal("AsError failed on wrapped error")
	}
	if apiErr.Code != 400 || apiErr.Description != "Bad Request: chat not found" {
		t.Errorf("got %d %q", apiErr.Code, apiErr.Description)
	}
}

func TestRateLimited_ClampsRetryAfter(t *testing.T) {
	e := RateLimited(0)
	if e.RetryAfter != 1 {
		t.Errorf("retry_after = %d, want 1", e.RetryAfter)
	}
	if e.Description != "Too Many Requests: retry after 1" {
		t.Errorf("description = %q", e.Description)
	}
	if e.Code != 429 {
		t.Errorf("code = %d, want 429", e.Code)
	}
}

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDesc   string
		wantParams bool
	}{
		{"not found", NotFound("message to edit not found"), 400, "", false},
		{"rate limited", RateLimited(7), 429, "", true},
		{"migrated", Migrated(-1001), 400, "", true},
		{"unsupported", Unsupported(), 404, "", false},
		{"plain error", errors.New("boom"), 400, "Bad Request: boom", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewErrorResponse(tt.err)
			if resp.OK {
				t.Fatal("ok = true for error response")
			}
			if resp.ErrorCode != tt.wantCode {
				t.Errorf("error_code = %d, want %d", resp.ErrorCode, tt.wantCode)
			}
			if tt.wantDesc != "" && resp.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", resp.Description, tt.wantDesc)
			}
			if (resp.Parameters != nil) != tt.wantParams {
				t.Errorf("parameters = %+v, wantParams %v", resp.Parameters, tt.wantParams)
			}
		})
	}
}

func TestResponse_ErrRestoresKind(t *testing.T) {
	resp := NewErrorResponse(RateLimited(3))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	got := decoded.Err()
	if !errors.Is(got, ErrRateLimited) {
		t.Fatalf("decoded error %v is not rate limited", got)
	}
	if e, _ := AsError(got); e.RetryAfter != 3 {
		t.Errorf("retry_after = %d, want 3", e.RetryAfter)
	}
}

func TestChatMember_StatusTagRoundTrip(t *testing.T) {
	upd := ChatMemberUpdated{
		Chat:          Chat{ID: -100, Type: ChatTypeSupergroup},
		From:          User{ID: 1, FirstName: "Ann"},
		OldChatMember: ChatMemberLeft{User: User{ID: 2, FirstName: "Bob"}},
		NewChatMember: ChatMemberRestricted{User: User{ID: 2, FirstName: "Bob"}, IsMember: true, UntilDate: 60},
	}
	data, err := json.Marshal(upd)
	if err != nil {
		t.Fatal(err)
	}
	var decoded ChatMemberUpdated
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.OldChatMember.MemberStatus() != StatusLeft {
		t.Errorf("old status = %q", decoded.OldChatMember.MemberStatus())
	}
	r, ok := decoded.NewChatMember.(ChatMemberRestricted)
	if !ok {
		t.Fatalf("new member is %T", decoded.NewChatMember)
	}
	if r.UntilDate != 60 || r.Status != StatusRestricted {
		t.Errorf("restricted = %+v", r)
	}
}
