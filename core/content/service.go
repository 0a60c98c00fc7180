package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/storage/document"
)

// Service is the workspace content manager for every kind. All operations are
// scoped under the owning teacher's private path prefix; there is no
// cross-teacher access path through this API.
type Service struct {
	store  document.Store
	logger core.Logger
}

func NewService(store document.Store, logger core.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (svc *Service) Create(ctx context.Context, teacherID string, kind Kind, ni NewItem) (Item, error) {
	now := time.Now().UTC()
	item := Item{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     ni.Title,
		Body:      ni.Body,
		URL:       ni.URL,
		Category:  ni.Category,
		Priority:  ni.Priority,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.store.Set(ctx, itemPath(teacherID, kind, item.ID), item.toFields()); err != nil {
		return Item{}, errors.Wrap(err, "creating content item")
	}
	return item, nil
}

func (svc *Service) Get(ctx context.Context, teacherID string, kind Kind, id string) (Item, error) {
	doc, err := svc.store.Get(ctx, itemPath(teacherID, kind, id))
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Item{}, ErrNotFound
		}
		return Item{}, errors.Wrap(err, "getting content item")
	}
	return fromDoc(kind, doc), nil
}

func (svc *Service) Update(ctx context.Context, teacherID string, kind Kind, id string, ui UpdateItem) (Item, error) {
	patch := ui.toPatch()
	if len(patch) > 0 {
		patch["updatedAt"] = document.EncodeTime(time.Now().UTC())
		if err := svc.store.Update(ctx, itemPath(teacherID, kind, id), patch); err != nil {
			if errors.Cause(err) == document.ErrNotFound {
				return Item{}, ErrNotFound
			}
			return Item{}, errors.Wrap(err, "updating content item")
		}
	}
	return svc.Get(ctx, teacherID, kind, id)
}

// SetActive toggles an item's publish flag (soft delete). An inactive item
// never reaches a student view, regardless of the session's settings.
func (svc *Service) SetActive(ctx context.Context, teacherID string, kind Kind, id string, active bool) (Item, error) {
	patch := map[string]interface{}{
		"isActive":  active,
		"updatedAt": document.EncodeTime(time.Now().UTC()),
	}
	if err := svc.store.Update(ctx, itemPath(teacherID, kind, id), patch); err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Item{}, ErrNotFound
		}
		return Item{}, errors.Wrap(err, "toggling content item")
	}
	return svc.Get(ctx, teacherID, kind, id)
}

// Remove hard-deletes an item.
func (svc *Service) Remove(ctx context.Context, teacherID string, kind Kind, id string) error {
	if _, err := svc.Get(ctx, teacherID, kind, id); err != nil {
		return err
	}
	return errors.Wrap(svc.store.Delete(ctx, itemPath(teacherID, kind, id)), "removing content item")
}

// List returns all of the teacher's items of a kind, newest first;
// the teacher sees inactive items too.
func (svc *Service) List(ctx context.Context, teacherID string, kind Kind) ([]Item, error) {
	return svc.query(ctx, teacherID, kind, document.QueryOpts{
		OrderBy:    "createdAt",
		Descending: true,
	})
}

// ListActive is the student read path: only active items, enforced in the
// query itself rather than by client-side filtering, newest first, capped.
func (svc *Service) ListActive(ctx context.Context, teacherID string, kind Kind, limit int) ([]Item, error) {
	return svc.query(ctx, teacherID, kind, document.QueryOpts{
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
		Where:      []document.Where{{Field: "isActive", Value: true}},
	})
}

func (svc *Service) query(ctx context.Context, teacherID string, kind Kind, opts document.QueryOpts) ([]Item, error) {
	docs, err := svc.store.Query(ctx, collectionPath(teacherID, kind), opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying content items")
	}
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fromDoc(kind, doc))
	}
	return items, nil
}

// Subscribe streams ordered snapshots of one kind as the teacher edits it.
func (svc *Service) Subscribe(ctx context.Context, teacherID string, kind Kind) (<-chan []Item, func(), error) {
	events, cancel, err := svc.store.Subscribe(ctx, collectionPath(teacherID, kind))
	if err != nil {
		return nil, nil, errors.Wrap(err, "subscribing to content")
	}

	out := make(chan []Item, 8)
	go func() {
		defer close(out)
		for range events {
			items, err := svc.List(ctx, teacherID, kind)
			if err != nil {
				svc.logger.Warn("refreshing content snapshot", err)
				continue
			}
			select {
			case out <- items:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

// SubscribeOwner streams raw change events under the whole of a teacher's
// content prefix; the student view resolver reloads off this feed.
func (svc *Service) SubscribeOwner(ctx context.Context, teacherID string) (<-chan document.Event, func(), error) {
	events, cancel, err := svc.store.Subscribe(ctx, "users/"+teacherID+"/")
	if err != nil {
		return nil, nil, errors.Wrap(err, "subscribing to teacher content")
	}
	return events, cancel, nil
}
