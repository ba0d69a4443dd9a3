// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/logging"
)

// PolicyHandlers exposes the loaded policy to operators.
type PolicyHandlers struct {
	enforcer *Enforcer
}

// NewPolicyHandlers creates a new PolicyHandlers instance.
func NewPolicyHandlers(enforcer *Enforcer) *PolicyHandlers {
	return &PolicyHandlers{enforcer: enforcer}
}

// PolicyRule is one p line.
type PolicyRule struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RoleAssignment is one g line.
type RoleAssignment struct {
	Member string `json:"member"`
	Role   string `json:"role"`
}

// PolicyResponse is the body of GET /api/v1/admin/policy.
type PolicyResponse struct {
	Rules       []PolicyRule     `json:"rules"`
	Assignments []RoleAssignment `json:"assignments"`
}

// GetPolicy lists every rule and role assignment.
// GET /api/v1/admin/policy
func (h *PolicyHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	resp := PolicyResponse{
		Rules:       make([]PolicyRule, 0),
		Assignments: make([]RoleAssignment, 0),
	}
	for _, p := range h.enforcer.Policy() {
		if len(p) >= 3 {
			resp.Rules = append(resp.Rules, PolicyRule{Subject: p[0], Object: p[1], Action: p[2]})
		}
	}
	for _, g := range h.enforcer.GroupingPolicy() {
		if len(g) >= 2 {
			resp.Assignments = append(resp.Assignments, RoleAssignment{Member: g[0], Role: g[1]})
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// CheckPermission reports whether the caller may perform an action.
// POST /api/v1/admin/policy/check
func (h *PolicyHandlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		http.Error(w, "Unauthorized: not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Object string `json:"object"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Object == "" || req.Action == "" {
		http.Error(w, "Invalid request body: object and action are required", http.StatusBadRequest)
		return
	}

	allowed, err := h.enforcer.EnforceWithRoles(id.UserID, id.RoleList(), req.Object, req.Action)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Permission check error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"allowed": allowed})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode policy response")
	}
}
