// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package validation

import (
	"strings"
	"sync"
	"testing"
)

type authorQuery struct {
	AuthorID string   `json:"author_id" validate:"required"`
	Limit    int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Sort     string   `json:"sort" validate:"omitempty,oneof=asc desc"`
	Tags     []string `json:"tags" validate:"omitempty,max=3"`
	Name     string   `json:"name" validate:"omitempty,min=2"`
}

type nested struct {
	Author authorQuery `json:"author"`
}

func TestValidateStruct_Valid(t *testing.T) {
	if err := ValidateStruct(&authorQuery{AuthorID: "a1", Limit: 10, Sort: "asc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_Messages(t *testing.T) {
	tests := []struct {
		name string
		in   authorQuery
		want string
	}{
		{"required uses json name", authorQuery{}, "author_id is required"},
		{"numeric max", authorQuery{AuthorID: "a", Limit: 1000}, "limit must be at most 100"},
		{"oneof", authorQuery{AuthorID: "a", Sort: "sideways"}, "sort must be one of: asc desc"},
		{"slice max", authorQuery{AuthorID: "a", Tags: []string{"1", "2", "3", "4"}}, "tags must contain at most 3 items"},
		{"string min", authorQuery{AuthorID: "a", Name: "x"}, "name must be at least 2 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := err.First().Error(); got != tt.want {
				t.Errorf("First() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateStruct_FirstIsDeclarationOrder(t *testing.T) {
	err := ValidateStruct(&authorQuery{Limit: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("Errors() = %d, want 2", len(err.Errors()))
	}
	if err.First().Field() != "author_id" {
		t.Errorf("First().Field() = %q, want author_id", err.First().Field())
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("combined message should join violations: %q", err.Error())
	}
}

func TestValidateStruct_NestedPath(t *testing.T) {
	err := ValidateStruct(&nested{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.First().Error(); got != "author.author_id is required" {
		t.Errorf("First() = %q", got)
	}
}

func TestFirst_Empty(t *testing.T) {
	var ve RequestValidationError
	if ve.First() == nil || ve.First().Error() != "validation failed" {
		t.Error("First() on empty error should return a generic violation")
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	var wg sync.WaitGroup
	seen := make(chan interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- GetValidator()
		}()
	}
	wg.Wait()
	close(seen)
	first := <-seen
	for v := range seen {
		if v != first {
			t.Fatal("GetValidator returned different instances")
		}
	}
}
