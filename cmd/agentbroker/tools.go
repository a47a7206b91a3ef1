package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/agentbroker/pkg/config"
	"github.com/cuemby/agentbroker/pkg/dispatcher"
	"github.com/cuemby/agentbroker/pkg/fanout"
	"github.com/cuemby/agentbroker/pkg/registry"
	"github.com/cuemby/agentbroker/pkg/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the generated tool schemas and exit",
	Long:  `tools builds the same schema set serve would expose over JSON-RPC and prints it as JSON, for debugging a tool's generated argument shape without starting the broker.`,
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	disp, err := dispatcher.New(cfg, registry.New(), nil)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	var allowed []types.AgentKind
	for _, kind := range types.AgentKinds() {
		if cfg.IsToolAllowed(kind) {
			allowed = append(allowed, kind)
		}
	}
	fan, err := fanout.New(nil, allowed)
	if err != nil {
		return fmt.Errorf("build fanout coordinator: %w", err)
	}

	type toolOut struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		Schema      map[string]interface{} `json:"schema"`
	}
	var out []toolOut
	for _, t := range disp.Tools() {
		out = append(out, toolOut{Name: t.Name, Description: t.Description, Schema: t.Document})
	}
	for _, t := range fan.Tools() {
		out = append(out, toolOut{Name: t.Name, Description: t.Description, Schema: t.Document})
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tool list: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
