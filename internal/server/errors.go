package server

import "errors"

var (
	// ErrBotClosed is returned when sending to a disconnected bot.
	ErrBotClosed = errors.New("bot connection closed")
	// ErrSendTimeout is returned when a bot's send buffer stays full.
	ErrSendTimeout = errors.New("send timeout")
	// ErrUnknownBot is returned when no connection matches an identity.
	ErrUnknownBot = errors.New("unknown bot identity")
	// ErrUnknownGame is returned when a move names a game that is not
	// in flight.
	ErrUnknownGame = errors.New("unknown game")
)
