// Command agent is an interactive client: each line is answered by the
// model, which may call the tool server's tools on the way.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/client"

	"github.com/boat-builder/peoplepod"
	"github.com/boat-builder/peoplepod/config"
	"github.com/boat-builder/peoplepod/prompts"
	"github.com/boat-builder/peoplepod/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Agent stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup("peoplepod-agent", cfg.Tracing.Enabled, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdown(context.Background())

	mcpClient, err := connect(ctx, cfg.Agent)
	if err != nil {
		return err
	}
	defer mcpClient.Close()

	tools, err := peoplepod.DiscoverTools(ctx, mcpClient)
	if err != nil {
		return err
	}
	summaries := make([]prompts.ToolSummary, 0, len(tools))
	for _, tool := range tools {
		summaries = append(summaries, prompts.ToolSummary{Name: tool.Name(), Description: tool.Description()})
	}
	logger.Info("Discovered tools", "count", len(tools))

	prompt, err := prompts.SystemPrompt(prompts.SystemPromptData{Tools: summaries, Extra: cfg.Agent.Instructions})
	if err != nil {
		return fmt.Errorf("failed to render system prompt: %w", err)
	}

	agent := peoplepod.NewAgent(prompt, tools)
	agent.SetMaxToolRounds(cfg.Agent.MaxToolRounds)
	llm := peoplepod.NewOpenAILLM(peoplepod.LLMConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		RequestTimeout: cfg.LLM.RequestTimeout,
	})
	pod := peoplepod.NewPod(llm, agent)
	pod.SetLogger(logger)

	sess, err := pod.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	runLoop(ctx, os.Stdin, os.Stdout, sess, cfg.Agent.Verbose)

	usage := sess.Usage()
	if cost, ok := sess.Cost(); ok {
		logger.Info("Session finished", "input_tokens", cost.InputTokens, "output_tokens", cost.OutputTokens, "cost", cost.TotalCost)
	} else {
		logger.Info("Session finished", "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
	}
	return nil
}

// connect starts the tool server as a child process when a command is
// configured, otherwise it dials the SSE endpoint.
func connect(ctx context.Context, cfg config.AgentConfig) (*client.Client, error) {
	if cfg.ServerCommand != "" {
		fields := strings.Fields(cfg.ServerCommand)
		return peoplepod.ConnectStdio(ctx, fields[0], fields[1:]...)
	}
	return peoplepod.ConnectSSE(ctx, cfg.ServerURL)
}

// runLoop reads one message per line until "exit", end of input or ctx is
// cancelled. A failed turn is reported and the loop goes on.
func runLoop(ctx context.Context, in io.Reader, out io.Writer, sess *peoplepod.Session, verbose bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "Enter your message: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return
			}
			line = l
		}

		if strings.EqualFold(strings.TrimSpace(line), "exit") {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fmt.Fprintf(out, "User: %s\n", line)
		answer, err := peoplepod.HandleUserMessage(ctx, sess, line, out, verbose)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Agent: %s\n", answer)
	}
}
