package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pdfview/pdfview/internal/viewer"
)

const writeTimeout = 5 * time.Second

// Track keeps the store in step with the controller's viewers. The returned
// function stops tracking.
func Track(c *viewer.Controller, store *Store) func() {
	return c.Subscribe(func(e viewer.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		switch e.Kind {
		case viewer.EventOpened, viewer.EventHash, viewer.EventTitle:
			if err := store.Save(ctx, e.Viewer); err != nil {
				log.Printf("session: %v", err)
			}
		case viewer.EventDestroyed:
			if err := store.Delete(ctx, e.Viewer.Tag); err != nil {
				log.Printf("session: %v", err)
			}
		}
	})
}

// Restore reopens every saved viewer whose document still exists and
// forgets the rest. It returns the restored viewers.
func Restore(ctx context.Context, c *viewer.Controller, store *Store) ([]viewer.State, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	saved := make([]viewer.Saved, 0, len(records))
	for _, r := range records {
		saved = append(saved, r.Saved())
	}

	restored, missing, err := c.Restore(saved)
	if err != nil {
		return nil, fmt.Errorf("restoring sessions: %w", err)
	}
	for _, m := range missing {
		log.Printf("session: forgetting %s (%s)", m.Tag, m.Path)
		if err := store.Delete(ctx, m.Tag); err != nil {
			log.Printf("session: %v", err)
		}
	}
	return restored, nil
}
