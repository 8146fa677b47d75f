package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, _, err := ctx.buildExecutor()
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, spec := range executor.Specs() {
				rows = append(rows, []string{spec.Name, describeParams(spec.Properties, spec.Required), spec.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Parameters", "Description"}, rows, nil))
			return nil
		},
	}
}

// describeParams lists parameters with required ones first and marked with *.
func describeParams(props map[string]any, required []string) string {
	req := make(map[string]bool, len(required))
	parts := make([]string, 0, len(props))
	for _, name := range required {
		req[name] = true
		parts = append(parts, name+"*")
	}
	optional := make([]string, 0, len(props))
	for name := range props {
		if !req[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return strings.Join(append(parts, optional...), ", ")
}

func newExecCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <tool> [json-input]",
		Short: "Run a single tool directly, bypassing the model",
		Example: `  clipper exec search_videos '{"query":"Shenzhen 4K walk","limit":3}'
  clipper exec check_video_playable '{"video_path":"workspace/abc/video.mp4"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "{}"
			if len(args) == 2 {
				input = args[1]
			}
			if !json.Valid([]byte(input)) {
				return fmt.Errorf("input is not valid JSON: %s", input)
			}
			executor, ws, err := ctx.buildExecutor()
			if err != nil {
				return err
			}
			release, err := ws.Acquire()
			if err != nil {
				return err
			}
			defer release()

			result := executor.Execute(cmd.Context(), args[0], json.RawMessage(input))
			fmt.Fprintln(cmd.OutOrStdout(), result.JSON())
			if result.Failed() {
				return fmt.Errorf("%s failed", args[0])
			}
			return nil
		},
	}
}
