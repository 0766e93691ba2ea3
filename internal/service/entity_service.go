package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-ledger-ws/internal/events"
	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"

	"github.com/google/uuid"
)

// UserDirectory is the slice of the user repository the entity registry reads.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByRoleCodes(ctx context.Context, codes ...string) ([]model.User, error)
}

type EntityService interface {
	ListEntities(ctx context.Context) ([]model.LedgerEntity, error)
	GetEntity(ctx context.Context, id string) (*model.LedgerEntity, error)
	AddExternalEntity(ctx context.Context, req *ExternalEntityRequest, actorID string) (*model.LedgerEntity, error)
	UpdateExternalEntity(ctx context.Context, id string, req *ExternalEntityRequest, actorID string) (*model.LedgerEntity, error)
	DeleteExternalEntity(ctx context.Context, id string, actorID string) error
}

type ExternalEntityRequest struct {
	Name    string           `json:"name" validate:"required"`
	Contact string           `json:"contact"`
	Type    model.EntityType `json:"type" validate:"required,oneof=supplier other"`
}

type entityService struct {
	users  UserDirectory
	store  repository.LedgerStore
	locks  *KeyedLocker
	events events.Publisher
}

func NewEntityService(users UserDirectory, store repository.LedgerStore, locks *KeyedLocker, pub events.Publisher) EntityService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &entityService{
		users:  users,
		store:  store,
		locks:  locks,
		events: pub,
	}
}

// ListEntities merges directory customers/resellers with external entities.
// Internal entities come first; an id is never listed twice.
func (s *entityService) ListEntities(ctx context.Context) ([]model.LedgerEntity, error) {
	users, err := s.users.FindByRoleCodes(ctx, model.LedgerRoleCodes...)
	if err != nil {
		return nil, err
	}
	external, err := s.store.Entities().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(users)+len(external))
	entities := make([]model.LedgerEntity, 0, len(users)+len(external))
	for _, u := range users {
		e := model.EntityFromUser(u)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entities = append(entities, e)
	}
	for _, x := range external {
		e := x.ToLedgerEntity()
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *entityService) GetEntity(ctx context.Context, id string) (*model.LedgerEntity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("entity", id)
	}

	internal, err := s.internalEntity(ctx, uid)
	if err != nil {
		return nil, err
	}
	if internal != nil {
		return internal, nil
	}

	x, err := s.store.Entities().FindByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("entity", id)
	}
	if err != nil {
		return nil, err
	}
	e := x.ToLedgerEntity()
	return &e, nil
}

// internalEntity returns the projection of a ledger-role user, or nil when
// no such user exists.
func (s *entityService) internalEntity(ctx context.Context, id uuid.UUID) (*model.LedgerEntity, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsLedgerParty() {
		return nil, nil
	}
	e := model.EntityFromUser(*u)
	return &e, nil
}

func (s *entityService) AddExternalEntity(ctx context.Context, req *ExternalEntityRequest, actorID string) (*model.LedgerEntity, error) {
	if err := validateEntityRequest(req); err != nil {
		return nil, err
	}

	x := &model.ExternalEntity{
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Type:    req.Type,
	}
	x.ID = uuid.New()
	x.CreatedBy = actorID
	x.UpdatedBy = actorID

	if err := s.store.Entities().Create(ctx, x); err != nil {
		return nil, err
	}

	e := x.ToLedgerEntity()
	s.publish("entity_created", e, actorID)
	return &e, nil
}

func (s *entityService) UpdateExternalEntity(ctx context.Context, id string, req *ExternalEntityRequest, actorID string) (*model.LedgerEntity, error) {
	if err := validateEntityRequest(req); err != nil {
		return nil, err
	}
	uid, err := s.mutableID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entityKey(id))
	defer unlock()

	var updated model.LedgerEntity
	err = s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		x, err := store.Entities().FindByID(ctx, uid)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("entity", id)
		}
		if err != nil {
			return err
		}

		x.Name = strings.TrimSpace(req.Name)
		x.Contact = strings.TrimSpace(req.Contact)
		x.Type = req.Type
		x.UpdatedBy = actorID
		if err := store.Entities().Update(ctx, x); err != nil {
			return err
		}
		updated = x.ToLedgerEntity()
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.publish("entity_updated", updated, actorID)
	return &updated, nil
}

// DeleteExternalEntity refuses entities that still carry transactions so a
// balance never drops out of the portfolio unnoticed.
func (s *entityService) DeleteExternalEntity(ctx context.Context, id string, actorID string) error {
	uid, err := s.mutableID(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(entityKey(id))
	defer unlock()

	var removed model.LedgerEntity
	err = s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		x, err := store.Entities().FindByID(ctx, uid)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("entity", id)
		}
		if err != nil {
			return err
		}

		count, err := store.Transactions().CountByEntity(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrEntityInUse
		}

		if err := store.Entities().Delete(ctx, uid); err != nil {
			return err
		}
		removed = x.ToLedgerEntity()
		return nil
	})
	unlock()
	if err != nil {
		return err
	}

	s.publish("entity_deleted", removed, actorID)
	return nil
}

// mutableID parses id and rejects ids that belong to directory users.
func (s *entityService) mutableID(ctx context.Context, id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, notFound("entity", id)
	}
	internal, err := s.internalEntity(ctx, uid)
	if err != nil {
		return uuid.Nil, err
	}
	if internal != nil {
		return uuid.Nil, ErrReadOnlyEntity
	}
	return uid, nil
}

func (s *entityService) publish(action string, e model.LedgerEntity, actorID string) {
	s.events.Publish(events.TopicEntityChanged, events.EntityEvent{
		Action:     action,
		Entity:     e,
		ActorID:    actorID,
		OccurredAt: time.Now(),
	})
}

func validateEntityRequest(req *ExternalEntityRequest) error {
	if req == nil {
		return invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	if blank(req.Name) {
		return invalid("name", "must not be blank")
	}
	return nil
}
