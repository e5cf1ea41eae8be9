package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/gorilla/websocket"

	"github.com/diceforbots/diceforbots/cmd/diceforbots/shared"
	"github.com/diceforbots/diceforbots/internal/fileutil"
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// WatchCmd follows the broadcast stream and writes each record as a
// JSON line, suitable for piping into log tooling.
type WatchCmd struct {
	URL       string   `kong:"default='ws://localhost:5556/ws',help='Server broadcast endpoint'"`
	Types     []string `kong:"help='Only print frames of these types (register_bot, game_log, tourney_log)'"`
	Standings string   `kong:"help='Write the latest tourney_log to this file, atomically, for dashboards'"`
	LogLevel  string   `kong:"default='warn',help='Log level'"`
}

func (c *WatchCmd) Run() error {
	logger := shared.SetupLogger(c.LogLevel)

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid broadcast URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	ctx := shared.SetupSignalHandler(logger)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	wanted := make(map[protocol.MessageType]bool, len(c.Types))
	for _, t := range c.Types {
		wanted[protocol.MessageType(t)] = true
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			logger.Warn().Err(err).Msg("Dropping undecodable frame")
			continue
		}
		if c.Standings != "" && msg.Type == protocol.TypeTourneyLog {
			if err := fileutil.WriteFileAtomic(c.Standings, msg.Data, 0o644); err != nil {
				logger.Warn().Err(err).Str("path", c.Standings).Msg("Failed to write standings file")
			}
		}
		if len(wanted) > 0 && !wanted[msg.Type] {
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\n", data)
	}
}
