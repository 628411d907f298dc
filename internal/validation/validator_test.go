// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package validation

import (
	"strings"
	"testing"
)

type loginRequest struct {
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=8"`
}

type notifyRequest struct {
	Title string `validate:"required,max=200"`
	Body  string `validate:"required,max=2000"`
}

func TestValidateStructPasses(t *testing.T) {
	req := loginRequest{Username: "alice", Password: "supersecret"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
}

func TestValidateStructSingleError(t *testing.T) {
	req := loginRequest{Username: "alice", Password: "short"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected code %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "at least 8 characters") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "Password" {
		t.Errorf("unexpected field detail %v", apiErr.Details["field"])
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := notifyRequest{}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 field entries, got %d", len(fields))
	}
	if !strings.Contains(apiErr.Message, "Title is required") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}
