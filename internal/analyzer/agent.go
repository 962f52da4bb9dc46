package analyzer

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

// NewAgent initializes the vision agent used for label suggestions
func NewAgent(ctx context.Context, logger *slog.Logger) (*agent.DefaultAgent, error) {
	// Check if Ollama is running
	_, err := exec.Command("curl", "-s", "http://localhost:11434/api/tags").Output()
	if err != nil {
		return nil, err
	}

	// Set up Ollama provider
	opts := &ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: "http://localhost",
		Port:    11434,
	}
	provider := ollama.NewProvider(opts)

	model := &types.Model{
		ID: "llama3.2-vision:11b",
	}
	provider.UseModel(ctx, model)

	agentConf := &agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: "You are a labeling assistant for instance segmentation. Answer with a short noun phrase naming the most prominent object in the image crop. Answer with the label only, no punctuation.",
	}

	return agent.NewAgent(agentConf), nil
}
