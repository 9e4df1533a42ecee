package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voicemap",
	Short: "Talk to a realtime model about a live map view",
	Long: `voicemap bridges a realtime speech model, a map viewport, and a chat
transcript into one conversational session.

Examples:
  voicemap serve                 # run the credential proxy
  voicemap chat                  # start a session from the terminal
  voicemap chat --center 40.7,-74.0 --zoom 12`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var debugRaw bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugRaw, "debug-raw", false, "Dump raw wire events to stderr")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
