package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[IndexShortIDMessage]  = (*IndexShortIDCommand)(nil)
	_ gocmd.Commander[IndexResourceMessage] = (*IndexResourceCommand)(nil)
)
