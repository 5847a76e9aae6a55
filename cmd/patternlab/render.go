package main

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/pkg/schema"
)

func renderCmd(a *app) *cobra.Command {
	var (
		mode   string
		step   int
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "render <topic>",
		Short: "Render one step of a topic diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			switch format {
			case "topology":
				topic, err := cat.Topic(args[0])
				if err != nil {
					return err
				}
				m := schema.DiagramMode(mode)
				if m == "" {
					m = topic.DefaultMode()
				}
				data, err := diagram.RenderTopology(cmd.Context(), topic, m)
				if err != nil {
					return err
				}
				buf.Write(data)
			default:
				scene, err := cat.Scene(cmd.Context(), args[0], schema.DiagramMode(mode), step)
				if err != nil {
					return err
				}
				if err := renderScene(&buf, scene, format); err != nil {
					return err
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = w.Write(buf.Bytes())
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "mode (default: the topic's first mode)")
	cmd.Flags().IntVar(&step, "step", 0, "zero-based step")
	cmd.Flags().StringVarP(&format, "format", "f", "ascii", "output format: ascii, svg, png, mermaid, topology")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func renderScene(w io.Writer, scene *diagram.Scene, format string) error {
	switch format {
	case "ascii":
		_, err := io.WriteString(w, diagram.RenderASCII(scene)+"\n")
		return err
	case "svg":
		return diagram.RenderSVG(w, scene)
	case "png":
		return diagram.RenderPNG(w, scene)
	case "mermaid", "mmd":
		_, err := io.WriteString(w, diagram.RenderMermaid(scene)+"\n")
		return err
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "unknown format %q", format).
		WithDetails(map[string]any{"formats": []string{"ascii", "svg", "png", "mermaid", "topology"}})
}
