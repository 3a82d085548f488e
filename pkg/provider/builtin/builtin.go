// Package builtin wires every bundled capability provider into a registry.
package builtin

import (
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/provider/anthropic"
	"github.com/driftlabs/helmsman/pkg/provider/discord"
	"github.com/driftlabs/helmsman/pkg/provider/evm"
	"github.com/driftlabs/helmsman/pkg/provider/mcp"
	"github.com/driftlabs/helmsman/pkg/provider/ollama"
	"github.com/driftlabs/helmsman/pkg/provider/openai"
)

// Register binds all bundled provider factories. Registration only names
// the constructors; no provider is instantiated until its config block
// appears in an agent definition.
func Register(r *provider.Registry) {
	r.RegisterFactory(openai.Name, openai.New)
	r.RegisterFactory(anthropic.Name, anthropic.New)
	r.RegisterFactory(ollama.Name, ollama.New)
	r.RegisterFactory(evm.Name, evm.New)
	r.RegisterFactory(discord.Name, discord.New)
	r.RegisterFactory(mcp.Name, mcp.New)
}
