// Command contract-tools calls the contract MCP tools of a running server.
//
//	contract-tools -url http://localhost:8080/mcp
//	contract-tools -tool find_contract_template -args '{"query":"traduzione di un romanzo"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"contract-assistant/internal/tools"
	"contract-assistant/pkg/logger"

	"github.com/cloudwego/eino/components/tool"
)

const version = "1.0.0"

func main() {
	var (
		url      string
		toolName string
		args     string
		timeout  time.Duration
	)
	flag.StringVar(&url, "url", "http://localhost:8080/mcp", "MCP endpoint")
	flag.StringVar(&toolName, "tool", "", "tool to invoke (lists tools when empty)")
	flag.StringVar(&args, "args", "{}", "tool arguments as JSON")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "call timeout")
	flag.Parse()

	if err := logger.Init("warn", "text"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := run(ctx, url, toolName, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url, toolName, args string) error {
	cli, err := tools.Connect(ctx, url, version)
	if err != nil {
		return err
	}
	defer cli.Close()

	einoTools, err := tools.EinoTools(ctx, cli)
	if err != nil {
		return err
	}

	for _, bt := range einoTools {
		info, err := bt.Info(ctx)
		if err != nil {
			return err
		}
		if toolName == "" {
			fmt.Printf("%s\t%s\n", info.Name, info.Desc)
			continue
		}
		if info.Name != toolName {
			continue
		}

		invokable, ok := bt.(tool.InvokableTool)
		if !ok {
			return fmt.Errorf("tool %s is not invokable", toolName)
		}
		out, err := invokable.InvokableRun(ctx, args)
		if err != nil {
			return err
		}
		text := tools.ResultText(out)
		if failure, isErr := tools.ParseToolError(text); isErr {
			return fmt.Errorf("%s: %s", failure.ToolName, failure.ErrorMessage)
		}
		fmt.Println(text)
		return nil
	}

	if toolName != "" {
		return fmt.Errorf("unknown tool %s", toolName)
	}
	return nil
}
