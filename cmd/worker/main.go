// Worker executable for codex-temporal-go
//
// This starts a Temporal worker that executes workflows and activities.
package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/mfateev/turnctl/internal/activities"
	"github.com/mfateev/turnctl/internal/llm"
	"github.com/mfateev/turnctl/internal/mcp"
	"github.com/mfateev/turnctl/internal/temporalclient"
	"github.com/mfateev/turnctl/internal/tools"
	"github.com/mfateev/turnctl/internal/tools/handlers"
	"github.com/mfateev/turnctl/internal/workflow"
)

const (
	TaskQueue = "codex-temporal"
)

func main() {
	// At least one provider key is needed for real sessions; warn rather
	// than refuse so a worker can still serve resume/query traffic.
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		log.Println("Warning: neither OPENAI_API_KEY nor ANTHROPIC_API_KEY is set; LLM calls will fail")
	}

	// Create Temporal client (TEMPORAL_* env vars override the defaults).
	clientOpts, err := temporalclient.LoadClientOptions("", "")
	if err != nil {
		log.Fatalf("Failed to load Temporal client config: %v", err)
	}
	c, err := client.Dial(clientOpts)
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Create worker
	w := worker.New(c, TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflow.AgenticWorkflow)
	w.RegisterWorkflow(workflow.AgenticWorkflowContinued)
	w.RegisterWorkflow(workflow.HarnessWorkflow)

	// Create tool registry with handlers
	// Maps to: codex-rs/core/src/tools/registry.rs ToolRegistry setup
	toolRegistry := tools.NewToolRegistry()
	toolRegistry.Register(handlers.NewShellTool())
	toolRegistry.Register(handlers.NewReadFileTool())
	toolRegistry.Register(handlers.NewApplyPatchTool())
	toolRegistry.Register(handlers.NewGrepFilesTool())
	toolRegistry.Register(handlers.NewListDirTool())
	toolRegistry.Register(handlers.NewWebFetchTool())

	mcpStore := mcp.NewMcpStore()
	toolRegistry.Register(handlers.NewMCPHandler(mcpStore))

	log.Printf("Registered %d tools", toolRegistry.ToolCount())

	// Create LLM client — dispatches per-request on ModelConfig.Provider so
	// update_model can switch providers mid-session.
	llmClient := llm.NewMultiProviderClient()

	// Register activities
	llmActivities := activities.NewLLMActivities(llmClient)
	w.RegisterActivity(llmActivities.ExecuteLLMCall)
	w.RegisterActivity(llmActivities.ExecuteCompact)
	w.RegisterActivity(llmActivities.GenerateSuggestions)

	toolActivities := activities.NewToolActivities(toolRegistry)
	w.RegisterActivity(toolActivities.ExecuteTool)

	mcpActivities := activities.NewMcpActivities(mcpStore)
	w.RegisterActivity(mcpActivities.InitializeMcpServers)
	w.RegisterActivity(mcpActivities.CleanupMcpServers)

	instructionActivities := activities.NewInstructionActivities()
	w.RegisterActivity(instructionActivities.LoadWorkerInstructions)
	w.RegisterActivity(instructionActivities.LoadExecPolicy)
	w.RegisterActivity(instructionActivities.LoadPersonalInstructions)

	// Start worker
	log.Printf("Starting worker on task queue: %s", TaskQueue)
	hostPort := clientOpts.HostPort
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	log.Printf("Temporal server: %s", hostPort)

	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker stopped")
}
