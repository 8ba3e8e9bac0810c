// mcp-client is an interactive REPL for exercising the vigil MCP server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client ./vigil --mcp")
		os.Exit(2)
	}

	ctx := context.Background()

	// Start the server as a subprocess
	cmd := exec.Command(args[0], args[1:]...)
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "vigil-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Println("Connected to Vigil MCP Server!")
	fmt.Println("Available commands:")
	fmt.Println("  /tools                      - List available tools")
	fmt.Println("  /health                     - Get current health report")
	fmt.Println("  /metrics                    - Collect a fresh metrics snapshot")
	fmt.Println("  /issues [category]          - List active issues")
	fmt.Println("  /recover <issue> <action>   - Run a recovery action")
	fmt.Println("  /history [minutes] [limit]  - Get archived health snapshots")
	fmt.Println("  /events [category] [limit]  - Get archived issue events")
	fmt.Println("  /diag                       - Generate a diagnostic report")
	fmt.Println("  /exit                       - Exit the client")
	fmt.Println("  <question>                  - Ask about application health")
	fmt.Println()

	// Interactive REPL
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch {
		case input == "/exit":
			fmt.Println("Goodbye!")
			return

		case input == "/tools":
			listTools(ctx, session)

		case input == "/health":
			callTool(ctx, session, "get_health", map[string]any{})

		case input == "/metrics":
			callTool(ctx, session, "get_realtime_metrics", map[string]any{})

		case strings.HasPrefix(input, "/issues"):
			parts := strings.Fields(input)
			args := map[string]any{}
			if len(parts) > 1 {
				args["category"] = parts[1]
			}
			callTool(ctx, session, "get_active_issues", args)

		case strings.HasPrefix(input, "/recover "):
			parts := strings.Fields(input)
			if len(parts) != 3 {
				fmt.Println("Usage: /recover <issue-id> <action-id>")
				continue
			}
			callTool(ctx, session, "run_recovery_action", map[string]any{
				"issue_id":  parts[1],
				"action_id": parts[2],
			})

		case strings.HasPrefix(input, "/history"):
			parts := strings.Fields(input)
			args := map[string]any{}
			if len(parts) > 1 {
				args["since_minutes"] = atoiOr(parts[1], 0)
			}
			if len(parts) > 2 {
				args["limit"] = atoiOr(parts[2], 10)
			}
			callTool(ctx, session, "get_historical_snapshots", args)

		case strings.HasPrefix(input, "/events"):
			parts := strings.Fields(input)
			args := map[string]any{}
			if len(parts) > 1 {
				args["category"] = parts[1]
			}
			if len(parts) > 2 {
				args["limit"] = atoiOr(parts[2], 20)
			}
			callTool(ctx, session, "get_issue_events", args)

		case input == "/diag":
			callTool(ctx, session, "generate_diagnostics", map[string]any{})

		default:
			// Treat as a question for explain_health
			callTool(ctx, session, "explain_health", map[string]any{
				"question": input,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Scanner error: %v", err)
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func listTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("Available Tools:")
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			log.Printf("Error listing tools: %v", err)
			return
		}
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()
}

func callTool(ctx context.Context, session *mcp.ClientSession, toolName string, args map[string]any) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Printf("Error calling tool: %v", err)
		return
	}

	printResult(result)
}

func printResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Printf("❌ Error: ")
	} else {
		fmt.Printf("✅ Result: ")
	}

	// Try to pretty-print the content
	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			fmt.Println(v.Text)
		default:
			jsonData, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
			} else {
				fmt.Println(string(jsonData))
			}
		}
	}
	fmt.Println()
}
