// Package orgrouter is the Admin agent of an A2A organisation: it accepts an
// employee question over JSON-RPC, decides whether the HR agent, the
// Finance agent or both should answer, fans the question out and joins the
// replies.
//
// # Quick Start
//
// Install the router:
//
//	go install github.com/kadirpekel/orgrouter/cmd/orgrouter@latest
//
// Run it against a stock cluster (HR on hr:8000, Finance on finance:8000):
//
//	orgrouter serve
//
// Or describe the deployment in YAML:
//
//	agents:
//	  hr:
//	    url: http://hr.internal:8000
//	  finance:
//	    url: http://finance.internal:8000
//	llm:
//	  provider: bedrock
//	  region: us-east-1
//
// and start it with:
//
//	orgrouter serve --config orgrouter.yaml --watch
//
// # Routing
//
// Queries are classified by an LLM that sees the live agent cards. When the
// LLM is unavailable or answers with an unknown label, a keyword classifier
// takes over. Queries that need neither agent are answered locally with a
// capability summary.
//
// # Packages
//
//   - pkg/dispatcher: end-to-end routing of one query
//   - pkg/routing: LLM and keyword classifiers
//   - pkg/discovery: agent card fetching and caching
//   - pkg/aggregate: parallel fan-out and reply joining
//   - pkg/server: HTTP surface (agent card, JSON-RPC, health)
//   - pkg/runtime: wiring from configuration
package orgrouter
