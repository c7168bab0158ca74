package events

import (
	"context"
	"errors"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

// Fanout delivers each event to every notifier and joins their errors.
type Fanout []ports.Notifier

var _ ports.Notifier = Fanout(nil)

func (f Fanout) NotifyArticle(ctx context.Context, event domain.ArticleEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyArticle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
