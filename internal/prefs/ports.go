// Package prefs persists operator preferences, currently just the
// agent-subscription filter.
package prefs

import "context"

type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, codes []string) error
}
