package bind

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	perr "recycle/internal/platform/errors"
)

type payload struct {
	Name  string `json:"name" validate:"required,min=2"`
	Count int    `json:"count" validate:"min=1,max=10"`
	Note  string `json:"note,omitempty" validate:"omitempty,notblank"`
}

func post(body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	}
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestParseJSON_Success(t *testing.T) {
	got, err := ParseJSON[payload](post(`{"name":"Alice","count":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Alice" || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code perr.ErrorCode
		msg  string
	}{
		{"empty body", "", perr.ErrorCodeJSON, "empty body"},
		{"malformed", `{"name":`, perr.ErrorCodeJSON, "invalid JSON"},
		{"unknown field", `{"name":"Al","count":1,"extra":true}`, perr.ErrorCodeJSON, "invalid JSON"},
		{"trailing data", `{"name":"Al","count":1} {}`, perr.ErrorCodeJSON, "trailing"},
		{"required", `{"count":1}`, perr.ErrorCodeValidation, "name is a required field"},
		{"short min", `{"name":"A","count":1}`, perr.ErrorCodeValidation, "name must be at least 2"},
		{"short max", `{"name":"Al","count":11}`, perr.ErrorCodeValidation, "count must be at most 10"},
		{"notblank", `{"name":"Al","count":1,"note":"   "}`, perr.ErrorCodeValidation, "note must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON[payload](post(tt.body))
			if perr.CodeOf(err) != tt.code {
				t.Fatalf("code = %v, want %v (%v)", perr.CodeOf(err), tt.code, err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestParseJSON_ValidationCarriesField(t *testing.T) {
	_, err := ParseJSON[payload](post(`{"name":"Al","count":0}`))
	e, ok := perr.As(err)
	if !ok {
		t.Fatalf("expected *perr.Error, got %T", err)
	}
	if e.Field() != "count" {
		t.Fatalf("field = %q, want count", e.Field())
	}
}

func TestJSONName(t *testing.T) {
	type s struct {
		A string `json:"alpha,omitempty"`
		B string `json:"-"`
		C string
	}
	typ := func(name string) string {
		f, _ := reflect.TypeOf(s{}).FieldByName(name)
		return jsonName(f)
	}
	if got := typ("A"); got != "alpha" {
		t.Fatalf("A -> %q", got)
	}
	if got := typ("B"); got != "B" {
		t.Fatalf("B -> %q", got)
	}
	if got := typ("C"); got != "C" {
		t.Fatalf("C -> %q", got)
	}
}

func TestValidationFieldAndMessage_Plain(t *testing.T) {
	if f, m := ValidationFieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil -> %q %q", f, m)
	}
	if f, m := ValidationFieldAndMessage(perr.New(perr.ErrorCodeUnknown, "boom")); f != "" || m != "boom" {
		t.Fatalf("plain -> %q %q", f, m)
	}
}
