// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server exposes the Admin agent over HTTP.
//
// Routes:
//
//	POST /, POST /a2a                     JSON-RPC message/send
//	GET  /.well-known/agent.json          the router's agent card
//	GET  /.well-known/agent-card.json     same card, current A2A path
//	GET  /health                          liveness
//	GET  /ready                           200 once a downstream card is available
//	GET  /metrics                         Prometheus, when enabled
package server
