package apperr

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" validate:"required,alpha"`
	Count int    `json:"count" validate:"gt=0"`
}

func TestInvalid_NamesJSONFields(t *testing.T) {
	err := Invalid(NewValidator().Struct(sample{Name: "x1"}))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, want := range []string{"name: alpha", "count: gt=0"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestInvalid_Nil(t *testing.T) {
	if Invalid(nil) != nil {
		t.Error("expected nil")
	}
	if err := NewValidator().Struct(sample{Name: "ok", Count: 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
