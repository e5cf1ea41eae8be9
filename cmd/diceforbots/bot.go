package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diceforbots/diceforbots/cmd/diceforbots/shared"
	"github.com/diceforbots/diceforbots/internal/protocol"
	"github.com/diceforbots/diceforbots/internal/randutil"
	"github.com/diceforbots/diceforbots/sdk"
)

// BotCmd runs built-in threshold bots against a server, mainly for
// smoke testing and as sparring partners.
type BotCmd struct {
	URL      string `kong:"default='ws://localhost:5555/ws',help='Server bot endpoint'"`
	Player   string `kong:"default='house',help='Player name to register under'"`
	Name     string `kong:"default='threshold',help='Bot name'"`
	Count    int    `kong:"default='1',help='Number of bots to run in this process'"`
	LogLevel string `kong:"default='info',help='Log level'"`
	Seed     *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func (c *BotCmd) Run() error {
	logger := shared.SetupLogger(c.LogLevel)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	ctx := shared.SetupSignalHandler(logger)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < c.Count; i++ {
		name := c.Name
		if c.Count > 1 {
			name = fmt.Sprintf("%s-%d", c.Name, i+1)
		}
		meta := protocol.BotMetadata{
			Player:           c.Player,
			Name:             name,
			Version:          version,
			Stateless:        true,
			SoftwareEngineer: true,
		}
		rng := randutil.New(seed + int64(i))
		client := sdk.NewClient(c.URL, meta, sdk.ThresholdMove(rng),
			logger.With().Str("bot_name", name).Logger())
		g.Go(func() error { return client.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
