package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	appErr := NewInsufficientStock("v-1", 5, 2)
	wrapped := fmt.Errorf("complete transfer: %w", appErr)

	if !IsCode(wrapped, CodeInsufficientStock) {
		t.Error("IsCode should see through fmt.Errorf wrapping")
	}

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("AsAppError should unwrap")
	}
	if got.Details["requested"] != 5.0 {
		t.Errorf("Details[requested] = %v, want 5", got.Details["requested"])
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidation("bad input"), http.StatusBadRequest},
		{NewNotFound("variant", "v-1"), http.StatusNotFound},
		{NewInsufficientStock("v-1", 3, 1), http.StatusUnprocessableEntity},
		{NewDuplicateSerial("IMEI-1"), http.StatusConflict},
		{NewConcurrentModification("variant", "v-1"), http.StatusConflict},
		{NewUnauthorized("no token"), http.StatusUnauthorized},
		{NewForbidden("admin only"), http.StatusForbidden},
		{NewInternal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := GetHTTPStatus(tt.err); got != tt.want {
			t.Errorf("GetHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWithDetailDoesNotMutateShared(t *testing.T) {
	base := NewValidation("bad input")
	withField := base.WithDetail("field", "quantity")

	if withField.Details["field"] != "quantity" {
		t.Error("WithDetail should set the detail")
	}
}
