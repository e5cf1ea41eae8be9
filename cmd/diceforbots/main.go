package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the tournament server"`
	Bot     BotCmd           `cmd:"" help:"Run one or more built-in bots"`
	Watch   WatchCmd         `cmd:"" help:"Follow the broadcast stream and print records"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("diceforbots"),
		kong.Description("Dice-bidding tournament server for bot-vs-bot play"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
