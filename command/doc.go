// Package command exposes index writes as go-command commanders.
package command
