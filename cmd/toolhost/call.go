package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/triage-ai/toolhost/internal/rpc"
	"github.com/triage-ai/toolhost/internal/transport"
)

var callCmd = &cobra.Command{
	Use:   "call [message]",
	Short: "Send one JSON-RPC message to a running host over gRPC",
	Long: `Send one JSON-RPC message to a running host over gRPC and print the response.

Either pass a full message as the only argument, or build a callTool request
with --tool and --args:

  toolhost call --tool catalog.applyDiscount --args '{"product_id":9,"percent":20}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().String("addr", "localhost:50070", "gRPC address of the host")
	callCmd.Flags().String("tool", "", "Tool to call (builds a callTool request)")
	callCmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	callCmd.Flags().Duration("timeout", 30*time.Second, "Call deadline")
}

func runCall(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	tool, _ := cmd.Flags().GetString("tool")
	toolArgs, _ := cmd.Flags().GetString("args")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	msg, err := callMessage(args, tool, toolArgs)
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := transport.NewGRPCClient(conn).Call(ctx, msg)
	if err != nil {
		return fmt.Errorf("call %s: %w", addr, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(resp))
	return nil
}

// callMessage returns the raw message to send: the positional argument as
// is, or a callTool request built from tool and its JSON arguments.
func callMessage(args []string, tool, toolArgs string) ([]byte, error) {
	switch {
	case len(args) == 1 && tool != "":
		return nil, errors.New("pass either a message or --tool, not both")
	case len(args) == 1:
		return []byte(args[0]), nil
	case tool == "":
		return nil, errors.New("a message or --tool is required")
	}

	if !json.Valid([]byte(toolArgs)) {
		return nil, fmt.Errorf("--args is not valid JSON: %s", toolArgs)
	}
	params, err := json.Marshal(rpc.CallToolParams{Name: tool, Arguments: json.RawMessage(toolArgs)})
	if err != nil {
		return nil, err
	}
	id, _ := json.Marshal(uuid.NewString())
	return json.Marshal(rpc.Request{
		JSONRPC: rpc.Version,
		ID:      id,
		Method:  rpc.MethodCallTool,
		Params:  params,
	})
}
