package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/voicemap/voicemap/internal/config"
	"github.com/voicemap/voicemap/internal/credentials"
	"github.com/voicemap/voicemap/internal/eventlog"
	"github.com/voicemap/voicemap/internal/realtime"
	"github.com/voicemap/voicemap/internal/signal"
	"github.com/voicemap/voicemap/internal/snapshot"
	"github.com/voicemap/voicemap/internal/tui"
)

var (
	chatTransport   string
	chatModel       string
	chatAudio       string
	chatCenter      string
	chatZoom        int
	chatNoSnapshots bool
	chatSessionURL  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a realtime session from the terminal",
	Long: `Start a realtime conversation: audio goes out over the peer
connection, typed messages and map snapshots go out over the event
channel, and the model's streamed replies land in the transcript.

Credentials come from the local proxy (voicemap serve); with
OPENAI_API_KEY set the key is used directly when no proxy is reachable.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	AddTransportFlag(chatCmd, &chatTransport)
	AddModelFlag(chatCmd, &chatModel)
	chatCmd.Flags().StringVar(&chatAudio, "audio", "", "Ogg Opus file to stream as microphone input")
	chatCmd.Flags().StringVar(&chatCenter, "center", "37.77493,-122.41942", "Initial map center as lat,lng")
	chatCmd.Flags().IntVar(&chatZoom, "zoom", 13, "Initial map zoom")
	chatCmd.Flags().BoolVar(&chatNoSnapshots, "no-snapshots", false, "Disable recurring map snapshots")
	chatCmd.Flags().StringVar(&chatSessionURL, "session-url", "", "Credential proxy URL (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(chatTransport, chatModel)
	if chatSessionURL != "" {
		cfg.OpenAI.SessionURL = chatSessionURL
	}

	lat, lng, err := parseCenter(chatCenter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext()
	defer stop()

	credential, err := resolveCredential(ctx, cfg)
	if err != nil {
		return err
	}

	log, err := newEventLog(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	coord := realtime.NewCoordinator(log)
	rec := realtime.NewReconciler()
	coord.OnMessage(rec.Handle)

	session := realtime.NewSession(newTransport(cfg), coord)

	capturer := newCapturer(cfg, coord, session)
	capturer.SetViewport(snapshot.Viewport{Lat: lat, Lng: lng, Zoom: chatZoom})

	model := tui.New(tui.Hooks{
		SendText: func(text string) {
			rec.NoteLocalUserText(text)
			coord.Send(realtime.NewUserTextEvent(text))
			coord.Send(realtime.NewResponseCreate())
		},
		Snapshot: func() {
			capturer.TriggerOnce(context.Background())
		},
		Quit: func() {
			capturer.Stop()
			session.Stop()
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	rec.OnChange(func(entries []realtime.TranscriptEntry) {
		p.Send(tui.TranscriptMsg(entries))
	})
	rec.OnError(func(err error) {
		p.Send(tui.ErrMsg{Err: err})
	})
	coord.OnError(func(err error) {
		if debugRaw {
			fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		}
		p.Send(tui.ErrMsg{Err: err})
	})
	log.OnAppend(func(e eventlog.Entry) {
		if debugRaw {
			fmt.Fprintf(os.Stderr, "%s %s %s\n", e.Dir, e.Type, string(e.Raw))
		}
		p.Send(tui.LogMsg(e))
	})
	capturer.OnError(func(err error) {
		p.Send(tui.ErrMsg{Err: err})
		p.Send(tui.StatusMsg("snapshots paused"))
	})
	session.OnStateChange(func(st realtime.State, err error) {
		p.Send(tui.StatusMsg(st.String()))
		if err != nil {
			p.Send(tui.ErrMsg{Err: err})
		}
		if st == realtime.StateActive && !chatNoSnapshots && cfg.Maps.APIKey != "" {
			capturer.Start()
		}
	})

	go func() {
		if err := session.Start(ctx, credential); err != nil {
			p.Send(tui.ErrMsg{Err: err})
		}
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	capturer.Stop()
	return session.Stop()
}

// resolveCredential fetches an ephemeral credential from the local proxy,
// falling back to the raw API key when no proxy is reachable.
func resolveCredential(ctx context.Context, cfg *config.Config) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	eph, err := credentials.Fetch(fetchCtx, nil, cfg.OpenAI.SessionURL)
	if err == nil {
		if eph.Model != "" {
			cfg.OpenAI.Model = eph.Model
		}
		return eph.Secret, nil
	}
	if cfg.OpenAI.APIKey != "" {
		fmt.Fprintf(os.Stderr, "credential proxy unavailable (%v), using API key directly\n", err)
		return cfg.OpenAI.APIKey, nil
	}
	return "", err
}

func newTransport(cfg *config.Config) realtime.Transport {
	if cfg.Transport == "websocket" {
		return realtime.NewWebSocketTransport(cfg.OpenAI.RealtimeWS, cfg.OpenAI.Model)
	}
	var source realtime.AudioSource
	if chatAudio != "" {
		source = realtime.NewFileSource(chatAudio)
	} else {
		source = realtime.NewSilentSource()
	}
	return realtime.NewWebRTCTransport(cfg.OpenAI.SignalURL, cfg.OpenAI.Model, source)
}

func newCapturer(cfg *config.Config, coord *realtime.Coordinator, session *realtime.Session) *snapshot.Capturer {
	fetcher := snapshot.NewStaticMapClient(cfg.Maps.APIKey)
	fetcher.Width = cfg.Maps.Width
	fetcher.Height = cfg.Maps.Height
	fetcher.Scale = cfg.Maps.Scale
	fetcher.MapType = cfg.Maps.MapType

	capturer := snapshot.New(snapshot.Config{
		Strategy: snapshot.Strategy(cfg.Snapshot.Strategy),
		Interval: cfg.Snapshot.Interval,
		Debounce: cfg.Snapshot.Debounce,
		History:  cfg.Snapshot.History,
	}, fetcher)

	capturer.OnSnapshot(func(snap snapshot.Snapshot) {
		st := session.State()
		if st != realtime.StateNegotiating && st != realtime.StateActive {
			return
		}
		coord.Send(realtime.NewSnapshotEvent(snap.Summary(), snap.DataURL))
		coord.Send(realtime.NewResponseCreate())
	})
	return capturer
}
