// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package authz authorizes the HTTP admin API with Casbin.
//
// WebSocket packages are authorized by the router's per-package role
// lists; this package only guards /api/v1/admin/*.
//
//	Request -> auth.Middleware.Authenticate -> Middleware.AuthorizeRequest -> handler
//
// # Model
//
// The embedded model is RBAC with keyMatch2 on the path and a "*" action
// wildcard:
//
//	m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
//
// The embedded policy grants operators read access to the listing
// endpoints and admins everything below /api/v1/admin/. Admin inherits
// operator. Set security.authz_model_path and security.authz_policy_path
// to replace either; a policy file is re-read every 30 seconds.
//
// # Subjects
//
// EnforceWithRoles checks the token subject first, so a policy file may
// grant rights to individual users with g lines, then each role claim.
//
// HTTP methods map to actions: GET, HEAD and OPTIONS are read; POST, PUT
// and PATCH are write; DELETE is delete.
package authz
