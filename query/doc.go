// Package query exposes the search operations as go-command queriers.
package query
