package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/vjdeck/internal/audio"
	"github.com/satindergrewal/vjdeck/internal/config"
	"github.com/satindergrewal/vjdeck/internal/control"
	"github.com/satindergrewal/vjdeck/internal/playlist"
	"github.com/satindergrewal/vjdeck/internal/renderer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts serveOptions
	root := &cobra.Command{
		Use:           "vjdeck",
		Short:         "Four-deck live visuals controller",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.register(root)

	var serveOpts serveOptions
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the deck controller, HTTP API and control surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOpts)
		},
	}
	serveOpts.register(serve)

	root.AddCommand(serve, devicesCmd(), presetsCmd(), monitorsCmd())
	return root
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices and MIDI inputs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND\tNAME\tDESCRIPTION\tDEFAULT")
			for _, d := range audio.ListDevices() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", d.Backend, d.Name, d.Description, d.IsDefault)
			}
			tw.Flush()

			ins, err := control.ListMIDIInputs()
			if err != nil {
				slog.Warn("midi inputs unavailable", "error", err)
				return
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "MIDI INPUTS")
			for _, name := range ins {
				fmt.Fprintln(out, name)
			}
		},
	}
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [dir]",
		Short: "List presets found under a directory",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := config.Load().Presets.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			printPresets(cmd.OutOrStdout(), dir, playlist.Scan(dir))
		},
	}
}

func printPresets(w io.Writer, dir string, items []playlist.Item) {
	if len(items) == 0 {
		fmt.Fprintf(w, "no presets in %s\n", dir)
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\n", it.Name, it.Path)
	}
}

func monitorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitors",
		Short: "List displays available for fullscreen output",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tSIZE\tPRIMARY")
			for _, m := range renderer.ListMonitors() {
				fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%t\n", m.Index, m.Name, m.Width, m.Height, m.IsPrimary)
			}
			tw.Flush()
		},
	}
}
