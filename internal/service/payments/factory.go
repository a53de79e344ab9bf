package payments

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onConfirmed, onFailed actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			"paid":      onConfirmed,
			"success":   onConfirmed,
			"succeeded": onConfirmed,
			"verified":  onConfirmed,
			"failed":    onFailed,
			"abandoned": onFailed,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, ok
}
