// Package model defines the vendor-neutral boundary to an OpenAI-compatible
// chat-completion endpoint.
//
// A Request renders itself into the exact wire body that is transmitted
// (Body): empty values are pruned recursively and tool_choice only appears
// when tools are present. Responses carry the parsed assistant message plus
// the raw vendor body. Vendor failures are *VendorError values whose Kind is
// mapped to an HTTP status and error class through ErrorTable.
//
// Providers (see model/openai) implement Client so the orchestrator stays
// decoupled from vendor SDKs. MockClient scripts responses for tests.
package model
