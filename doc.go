// Package vaultpilot is an agentic assistant for a local markdown vault.
//
// It answers questions over the user's notes with a retrieval-augmented
// agent loop: the model can search the vault, fetch web pages, write notes,
// and update long-term memory through a permissioned tool registry, while a
// reasoning narrator streams progress back to the caller.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/vaultpilot/vaultpilot/cmd/vaultpilot@latest
//
// Create a configuration:
//
//	vault: /path/to/notes
//	llm:
//	  api_key: ${OPENAI_API_KEY}
//	  model: gpt-4o
//
// Index the vault and chat:
//
//	vaultpilot index --config config.yaml
//	vaultpilot chat --config config.yaml
//
// # Using as a Go Library
//
// The packages under pkg/ compose directly:
//
//	import (
//	    "github.com/vaultpilot/vaultpilot/pkg/agent"
//	    vaultcontext "github.com/vaultpilot/vaultpilot/pkg/context"
//	    "github.com/vaultpilot/vaultpilot/pkg/tools"
//	)
package vaultpilot
