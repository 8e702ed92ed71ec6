// Package ratelimit throttles search index reads per organisation.
package ratelimit
