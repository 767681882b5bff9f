package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke a single tool and print its response envelope",
	Long: `Invokes one tool directly, without starting a server. Arguments are
passed as a JSON object via --args.

Example:
  usdata-mcp call search_population --args '{"year": 2021, "state": "06"}'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rawArgs, _ := cmd.Flags().GetString("args")

		toolArgs := map[string]any{}
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
				log.Fatalf("Invalid --args JSON: %v", err)
			}
		}

		system, _, _, err := setup(cmd)
		if err != nil {
			log.Fatalf("Error initializing: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env := system.Registry.Call(ctx, args[0], toolArgs)
		fmt.Println(env.JSON())
		if !env.Success {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().String("args", "", "Tool arguments as a JSON object")
}
