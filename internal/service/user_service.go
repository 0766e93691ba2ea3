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

// UserService manages the directory. Users holding a ledger role are also
// ledger entities, so changes that would orphan their transactions are
// refused.
type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest, creatorID string) (*model.User, error)
	UpdateUser(ctx context.Context, userID string, req *UpdateUserRequest, updaterID string) (*model.User, error)
	DeleteUser(ctx context.Context, userID string, actorID string) error
	UpdateUserPrivileges(ctx context.Context, userID string, privilegeCodes []string, updaterID string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, userID string) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	RoleID      uint   `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"max=20"`
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
	transactions  repository.TransactionRepository
	locks         *KeyedLocker
	events        events.Publisher
}

func NewUserService(
	userRepo repository.UserRepository,
	privilegeRepo repository.PrivilegeRepository,
	roleRepo repository.RoleRepository,
	transactions repository.TransactionRepository,
	locks *KeyedLocker,
	pub events.Publisher,
) UserService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
		transactions:  transactions,
		locks:         locks,
		events:        pub,
	}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest, creatorID string) (*model.User, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	role, err := s.findRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: req.PhoneNumber,
		RoleID:      &req.RoleID,
		Role:        role,
		IsActive:    true,
	}
	user.ID = uuid.New()
	user.CreatedBy = creatorID
	user.UpdatedBy = creatorID

	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}

	// privileges follow the role
	user.Privileges = role.Privileges

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publishEntity("entity_created", user, creatorID)
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID string, req *UpdateUserRequest, updaterID string) (*model.User, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, notFound("user", userID)
	}

	unlock := s.locks.Lock(entityKey(userID))
	defer unlock()

	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != user.Email {
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
	}

	role, err := s.findRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	wasParty := user.IsLedgerParty()
	stillParty := role.Code == model.RoleCustomer || role.Code == model.RoleReseller
	if wasParty && !stillParty {
		if err := s.ensureNoTransactions(ctx, userID); err != nil {
			return nil, err
		}
	}

	user.Email = email
	user.FullName = strings.TrimSpace(req.FullName)
	user.PhoneNumber = req.PhoneNumber
	user.RoleID = &req.RoleID
	user.Role = role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = updaterID

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, errors.New("failed to hash password")
		}
		// force every open session to log in again
		user.TokenVersion = uuid.NewString()
	}

	user.Privileges = role.Privileges

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	unlock()

	if wasParty || stillParty {
		s.publishEntity("entity_updated", user, updaterID)
	}
	return s.userRepo.FindByID(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, userID string, actorID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return notFound("user", userID)
	}

	unlock := s.locks.Lock(entityKey(userID))
	defer unlock()

	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsLedgerParty() {
		if err := s.ensureNoTransactions(ctx, userID); err != nil {
			return err
		}
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user", userID)
		}
		return err
	}
	unlock()

	if user.IsLedgerParty() {
		s.publishEntity("entity_deleted", user, actorID)
	}
	return nil
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, userID string, privilegeCodes []string, updaterID string) (*model.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, notFound("user", userID)
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, err
	}
	if len(privileges) != len(uniqueStrings(privilegeCodes)) {
		return nil, invalid("privileges", "contains unknown privilege codes")
	}

	user.Privileges = privileges
	user.UpdatedBy = updaterID
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, id)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID string) (*model.UserResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, notFound("user", userID)
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) findUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", id.String())
	}
	return user, err
}

func (s *userService) findRole(ctx context.Context, id uint) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("role_id", "does not reference an existing role")
	}
	return role, err
}

func (s *userService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return ErrEmailExists
	}
	return nil
}

func (s *userService) ensureNoTransactions(ctx context.Context, entityID string) error {
	n, err := s.transactions.CountByEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrEntityInUse
	}
	return nil
}

func (s *userService) publishEntity(action string, user *model.User, actorID string) {
	if !user.IsLedgerParty() && action != "entity_updated" {
		return
	}
	s.events.Publish(events.TopicEntityChanged, events.EntityEvent{
		Action:     action,
		Entity:     model.EntityFromUser(*user),
		ActorID:    actorID,
		OccurredAt: time.Now(),
	})
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
