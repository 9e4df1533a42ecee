package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// AddTransportFlag adds the shared --transport flag.
func AddTransportFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "transport", "t", "", "Realtime transport: webrtc or websocket")
}

// AddModelFlag adds the shared --model flag.
func AddModelFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "model", "m", "", "Override the realtime model")
}

// parseCenter parses a "lat,lng" pair.
func parseCenter(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid center %q (want lat,lng)", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return lat, lng, nil
}
