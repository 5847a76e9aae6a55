package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/tui"
	"github.com/rendis/patternlab/pkg/schema"
)

func playCmd(a *app) *cobra.Command {
	var (
		mode     string
		tick     string
		autoplay bool
	)
	cmd := &cobra.Command{
		Use:   "play [topic]",
		Short: "Play a topic's diagram in the terminal",
		Long:  "Play a topic's diagram in the terminal. Without a topic, pick one interactively.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tick") {
				a.cfg.Tick = tick
			}
			cadence, err := scheduler.ParseCadence(a.cfg.Tick)
			if err != nil {
				return err
			}

			topicID := ""
			selected := schema.DiagramMode(mode)
			if len(args) == 1 {
				topicID = args[0]
			} else {
				topicID, selected, err = tui.Pick(cat)
				if err != nil {
					return err
				}
			}

			p, err := tui.NewPlayer(cmd.Context(), cat, topicID, tui.Options{
				Mode:     selected,
				Cadence:  cadence,
				Logger:   a.logger,
				Autoplay: autoplay,
			})
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "mode to start in (default: the topic's first mode)")
	cmd.Flags().StringVar(&tick, "tick", "", "auto-advance cadence")
	cmd.Flags().BoolVar(&autoplay, "autoplay", false, "start playing immediately")
	return cmd
}
