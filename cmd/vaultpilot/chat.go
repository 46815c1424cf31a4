package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// ChatCmd starts an interactive chat session on stdin.
type ChatCmd struct {
	Session string `help:"Session ID to resume. A fresh one is generated when empty."`
	Live    bool   `help:"Redraw reasoning progress in place while the agent works."`
	NoTools bool   `name:"no-tools" help:"Disable tool use for this session."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, closeLog, err := cli.loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	toolsEnabled := *cfg.ToolsEnabled
	if c.NoTools {
		toolsEnabled = false
	}

	fmt.Printf("vaultpilot chat (session %s)\n", sessionID)
	fmt.Println("Type your messages below. /quit ends the session.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			// EOF ends the session cleanly.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			return nil
		}

		if err := c.runTurn(ctx, rt, sessionID, toolsEnabled, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Printf("Error: %v\n\n", err)
		}
	}
}

func (c *ChatCmd) runTurn(ctx context.Context, rt *appRuntime, sessionID string, toolsEnabled bool, input string) error {
	var live liveRenderer
	stream := func(string) {}
	if c.Live {
		stream = live.update
	}

	facts := loadMemoryFacts(ctx, rt)

	result, err := rt.agent.Run(ctx, agentRequest(rt, sessionID, toolsEnabled, input, facts), stream)
	if c.Live {
		live.clear()
	}
	if result != nil {
		fmt.Println(result.FinalResponse)
		if len(result.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range result.Sources {
				if src.Path != "" {
					fmt.Printf("  - %s (%s)\n", src.Title, src.Path)
				} else {
					fmt.Printf("  - %s\n", src.Title)
				}
			}
		}
		fmt.Println()
	}
	return err
}

// liveRenderer redraws the in-progress narration in place by rewinding the
// cursor over the previous render.
type liveRenderer struct {
	lines int
}

func (r *liveRenderer) update(text string) {
	r.clear()
	fmt.Print(text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Println()
		text += "\n"
	}
	r.lines = strings.Count(text, "\n")
}

func (r *liveRenderer) clear() {
	if r.lines > 0 {
		fmt.Printf("\033[%dA\033[J", r.lines)
		r.lines = 0
	}
}
