package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type frameMessage struct {
	Type  string `json:"type"`
	Frame string `json:"frame"`
}

func newStreamCmd() *cobra.Command {
	var (
		imagePath string
		interval  time.Duration
		count     int
		linger    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stream <session>",
		Short: "Open a kiosk session and stream an image as camera frames",
		Long: `Connects to /ws/<session>, sends the image as a frame message every
--interval and prints every event the server pushes back.

Stops after --count frames (0 streams until interrupted), waiting --linger
for trailing events before closing the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}

			frame, err := encodeFrame(imagePath)
			if err != nil {
				return err
			}

			wsURL, err := cfg.WebSocketURL("/ws/" + args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusConflict {
					return fmt.Errorf("session %s is already connected", args[0])
				}
				return fmt.Errorf("failed to connect: %w", err)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if cfg.Verbose {
				out.PrintMessage("connected to " + wsURL)
			}

			return runStream(ctx, conn, frame, interval, count, linger, out)
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Image file to send as the camera frame (required)")
	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "Time between frames")
	cmd.Flags().IntVar(&count, "count", 0, "Number of frames to send (0 for unlimited)")
	cmd.Flags().DurationVar(&linger, "linger", 2*time.Second, "Time to keep reading events after the last frame")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// encodeFrame reads path into a data URL frame payload
func encodeFrame(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func runStream(ctx context.Context, conn *websocket.Conn, frame string, interval time.Duration, count int, linger time.Duration, out *Output) error {
	defer func() { _ = conn.Close() }()

	msg, err := json.Marshal(frameMessage{Type: "frame", Frame: frame})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reader: print events until the server closes or the writer is done
	g.Go(func() error {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("connection lost: %w", err)
			}

			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				continue
			}
			out.Print(StreamEvent{Time: time.Now(), Type: head.Type, Data: data})
		}
	})

	// Writer: send frames, then linger and close
	g.Go(func() error {
		defer func() {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			cancel()
			_ = conn.SetReadDeadline(time.Now())
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for sent := 0; count == 0 || sent < count; sent++ {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("failed to send frame: %w", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
		return nil
	})

	return g.Wait()
}
