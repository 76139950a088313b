package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kevinpbuckley/blueprintd/internal/diagram"
	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/workspace"
)

var (
	flagRenderGraph  string
	flagRenderFormat string
	flagRenderOut    string
)

var renderCmd = &cobra.Command{
	Use:   "render <document-id>",
	Short: "Render a stored document's graph as a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}
		return render(cfg, args[0])
	},
}

func init() {
	renderCmd.Flags().StringVar(&flagRenderGraph, "graph", "", "graph name (default: first graph)")
	renderCmd.Flags().StringVar(&flagRenderFormat, "format", "mermaid", "output format (mermaid or png)")
	renderCmd.Flags().StringVarP(&flagRenderOut, "out", "o", "", "output file (default: stdout)")
	renderCmd.Flags().StringVar(&flagDBPath, "db", "", "path to the libSQL database file")
}

func render(cfg Config, documentID string) error {
	ctx := context.Background()
	logger := newLogger(os.Stderr, "error")

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := workspace.New(st, logger).Get(ctx, documentID)
	if err != nil {
		return err
	}

	var g *graph.Graph
	if flagRenderGraph != "" {
		if g = doc.GraphByName(flagRenderGraph); g == nil {
			return fmt.Errorf("document %s has no graph named %q", documentID, flagRenderGraph)
		}
	} else {
		graphs := doc.Graphs()
		if len(graphs) == 0 {
			return fmt.Errorf("document %s has no graphs", documentID)
		}
		g = graphs[0]
	}

	model := diagram.Build(g)

	var out []byte
	switch flagRenderFormat {
	case "mermaid":
		out = []byte(diagram.RenderMermaid(model))
	case "png":
		if out, err = diagram.RenderImage(model); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (must be mermaid or png)", flagRenderFormat)
	}

	if flagRenderOut == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(flagRenderOut, out, 0o644)
}
