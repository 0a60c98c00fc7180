package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/storage/cache"
	"github.com/trezcool/ubao/storage/document"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")
	ErrInactive = errors.New("session is not active")
)

// Service owns the lifecycle and integrity of the code→teacher binding.
//
// Every session lives as two records: the teacher's own pointer at
// teachers/{id}/session/current and the public lookup at sessions/{code}.
// Both are always written inside one store transaction so no failure can
// leave one active and the other not.
type Service struct {
	store    document.Store
	cache    cache.Cache
	cacheTTL time.Duration
	logger   core.Logger
}

func NewService(store document.Store, cch cache.Cache, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		store:    store,
		cache:    cch,
		cacheTTL: conf.SessionCacheTTL,
		logger:   logger,
	}
}

// Create opens a new session for the teacher: fresh unique code, all content
// kinds visible, active. A previous current session's public code is retired
// in the same transaction; a teacher has at most one live code.
func (svc *Service) Create(ctx context.Context, teacherID, teacherName string, ns NewSession) (Session, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := svc.newUniqueCode(ctx)
		if err != nil {
			return Session{}, errors.Wrap(err, "generating session code")
		}

		now := time.Now().UTC()
		sess := Session{
			Code:        code,
			TeacherID:   teacherID,
			TeacherName: teacherName,
			ClassName:   ns.ClassName,
			IsActive:    true,
			Settings:    DefaultSettings(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		var prevCode string
		err = svc.store.RunTransaction(ctx, func(tx document.Tx) error {
			if err := ensureCodeUnused(tx, code); err != nil {
				return err
			}

			prevCode = ""
			if doc, err := tx.Get(currentPath(teacherID)); err == nil {
				prevCode = fromDoc(doc).Code
			} else if errors.Cause(err) != document.ErrNotFound {
				return err
			}

			if prevCode != "" {
				patch := map[string]interface{}{"isActive": false, "lastUpdated": document.EncodeTime(now)}
				if err := tx.Update(publicPath(prevCode), patch); err != nil && errors.Cause(err) != document.ErrNotFound {
					return err
				}
			}

			fields := sess.toFields()
			if err := tx.Set(publicPath(code), fields); err != nil {
				return err
			}
			return tx.Set(currentPath(teacherID), fields)
		})
		if errors.Cause(err) == errCodeTaken {
			continue // lost the race for this code; draw another
		}
		if err != nil {
			return Session{}, errors.Wrap(err, "creating session")
		}

		svc.invalidate(ctx, code, prevCode)
		return sess, nil
	}
	return Session{}, errCodeSpaceExhausted
}

// Current returns the teacher's own current session.
func (svc *Service) Current(ctx context.Context, teacherID string) (Session, error) {
	doc, err := svc.store.Get(ctx, currentPath(teacherID))
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "getting current session")
	}
	return fromDoc(doc), nil
}

// SetActive flips the activation gate on both records.
func (svc *Service) SetActive(ctx context.Context, teacherID string, active bool) (Session, error) {
	return svc.patchCurrent(ctx, teacherID, func(sess Session) map[string]interface{} {
		return map[string]interface{}{"isActive": active}
	})
}

// UpdateSettings merges patch into the current session's visibility flags.
func (svc *Service) UpdateSettings(ctx context.Context, teacherID string, patch SettingsPatch) (Session, error) {
	if patch.isEmpty() {
		return svc.Current(ctx, teacherID)
	}
	return svc.patchCurrent(ctx, teacherID, func(sess Session) map[string]interface{} {
		return map[string]interface{}{"settings": patch.apply(sess.Settings).toFields()}
	})
}

// patchCurrent applies makePatch to the teacher's current session on both
// records inside one transaction.
func (svc *Service) patchCurrent(ctx context.Context, teacherID string, makePatch func(Session) map[string]interface{}) (Session, error) {
	var sess Session
	err := svc.store.RunTransaction(ctx, func(tx document.Tx) error {
		doc, err := tx.Get(currentPath(teacherID))
		if err != nil {
			return err
		}
		sess = fromDoc(doc)

		patch := makePatch(sess)
		patch["lastUpdated"] = document.EncodeTime(time.Now().UTC())
		if err = tx.Update(publicPath(sess.Code), patch); err != nil && errors.Cause(err) != document.ErrNotFound {
			return err
		}
		return tx.Update(currentPath(teacherID), patch)
	})
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "updating session")
	}

	svc.invalidate(ctx, sess.Code)
	return svc.Current(ctx, teacherID)
}

// Regenerate retires the current code and repoints the teacher's session at a
// fresh one, carrying over class name, teacher name, settings and activation
// state. The old code permanently resolves to an inactive session.
func (svc *Service) Regenerate(ctx context.Context, teacherID string) (Session, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		newCode, err := svc.newUniqueCode(ctx)
		if err != nil {
			return Session{}, errors.Wrap(err, "generating session code")
		}

		var sess Session
		var oldCode string
		err = svc.store.RunTransaction(ctx, func(tx document.Tx) error {
			if err := ensureCodeUnused(tx, newCode); err != nil {
				return err
			}

			doc, err := tx.Get(currentPath(teacherID))
			if err != nil {
				return err
			}
			old := fromDoc(doc)
			oldCode = old.Code

			now := time.Now().UTC()
			sess = old
			sess.Code = newCode
			sess.CreatedAt = now
			sess.UpdatedAt = now

			patch := map[string]interface{}{"isActive": false, "lastUpdated": document.EncodeTime(now)}
			if err = tx.Update(publicPath(oldCode), patch); err != nil && errors.Cause(err) != document.ErrNotFound {
				return err
			}

			fields := sess.toFields()
			if err = tx.Set(publicPath(newCode), fields); err != nil {
				return err
			}
			return tx.Set(currentPath(teacherID), fields)
		})
		if errors.Cause(err) == errCodeTaken {
			continue
		}
		if err != nil {
			if errors.Cause(err) == document.ErrNotFound {
				return Session{}, ErrNotFound
			}
			return Session{}, errors.Wrap(err, "regenerating session code")
		}

		svc.invalidate(ctx, newCode, oldCode)
		return sess, nil
	}
	return Session{}, errCodeSpaceExhausted
}

// Resolve is the public, unauthenticated lookup by code; read-through cached
// since anonymous students hammer it on every page load.
func (svc *Service) Resolve(ctx context.Context, code string) (Session, error) {
	code = strings.ToUpper(core.CleanString(code))
	if code == "" {
		return Session{}, ErrNotFound
	}

	key := cacheKey(code)
	if raw, ok, err := svc.cache.Get(ctx, key); err != nil {
		svc.logger.Warn(fmt.Sprintf("session cache get: %v", err), err)
	} else if ok {
		var sess Session
		if err = json.Unmarshal(raw, &sess); err == nil {
			return sess, nil
		}
	}

	doc, err := svc.store.Get(ctx, publicPath(code))
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "resolving session code")
	}
	sess := fromDoc(doc)

	if raw, err := json.Marshal(sess); err == nil {
		if err = svc.cache.Set(ctx, key, raw, svc.cacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("session cache set: %v", err), err)
		}
	}
	return sess, nil
}

// Deactivate retires a public code directly; ops support path for leaked
// codes. The owning teacher's copy is retired too when it still points at
// this code.
func (svc *Service) Deactivate(ctx context.Context, code string) error {
	code = strings.ToUpper(core.CleanString(code))
	err := svc.store.RunTransaction(ctx, func(tx document.Tx) error {
		doc, err := tx.Get(publicPath(code))
		if err != nil {
			return err
		}
		sess := fromDoc(doc)

		patch := map[string]interface{}{"isActive": false, "lastUpdated": document.EncodeTime(time.Now().UTC())}
		if err = tx.Update(publicPath(code), patch); err != nil {
			return err
		}
		if cur, err := tx.Get(currentPath(sess.TeacherID)); err == nil && fromDoc(cur).Code == code {
			return tx.Update(currentPath(sess.TeacherID), patch)
		}
		return nil
	})
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deactivating session code")
	}
	svc.invalidate(ctx, code)
	return nil
}

// Subscribe streams the public session record's states as they change.
func (svc *Service) Subscribe(ctx context.Context, code string) (<-chan Session, func(), error) {
	code = strings.ToUpper(core.CleanString(code))
	events, cancel, err := svc.store.Subscribe(ctx, publicPath(code))
	if err != nil {
		return nil, nil, errors.Wrap(err, "subscribing to session")
	}

	out := make(chan Session, 8)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Type != document.EventSet {
				continue
			}
			select {
			case out <- fromDoc(ev.Doc):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

func (svc *Service) invalidate(ctx context.Context, codes ...string) {
	for _, code := range codes {
		if code == "" {
			continue
		}
		if err := svc.cache.Delete(ctx, cacheKey(code)); err != nil {
			svc.logger.Warn(fmt.Sprintf("session cache invalidate %s: %v", code, err), err)
		}
	}
}

func cacheKey(code string) string {
	return "session:" + code
}
