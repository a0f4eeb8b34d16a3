package study

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/identity"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
	"go.uber.org/zap"
)

// codeRetries bounds signup-code regeneration on collision
const codeRetries = 5

// Authorizer checks a user's role on a study. Implemented by StudyService
// and consumed by the other services guarding study-scoped operations.
type Authorizer interface {
	Authorize(ctx context.Context, userID, studyID uuid.UUID, min study.Role) error
}

// StudyService handles study CRUD and collaborator management
type StudyService struct {
	studyRepo     study.StudyRepository
	userStudyRepo study.UserStudyRepository
	userRepo      identity.UserRepository
	logger        *zap.Logger
}

// NewStudyService creates a new study service
func NewStudyService(
	studyRepo study.StudyRepository,
	userStudyRepo study.UserStudyRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
) *StudyService {
	return &StudyService{
		studyRepo:     studyRepo,
		userStudyRepo: userStudyRepo,
		userRepo:      userRepo,
		logger:        logger,
	}
}

// Authorize verifies the user holds at least the given role on the study
func (s *StudyService) Authorize(ctx context.Context, userID, studyID uuid.UUID, min study.Role) error {
	membership, err := s.userStudyRepo.Find(ctx, userID, studyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrForbidden
		}
		return err
	}
	if !membership.Role.AtLeast(min) {
		return shared.ErrForbidden
	}
	return nil
}

// CreateStudy creates a study and makes the creator its owner
func (s *StudyService) CreateStudy(ctx context.Context, input CreateStudyInput) (*StudyInfo, error) {
	st, err := study.NewStudy(input.PublicName, input.InternalName, input.ContactMessage)
	if err != nil {
		return nil, err
	}

	// Regenerate on the unlikely signup-code collision
	for i := 0; i < codeRetries; i++ {
		taken, err := s.studyRepo.ExistsByCode(ctx, st.Code)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		code, err := study.GenerateCode(study.SignupCodeLength)
		if err != nil {
			return nil, shared.NewDomainError("CODE_GENERATION_ERROR", "Failed to generate signup code")
		}
		st.Code = code
	}

	if err := s.studyRepo.Save(ctx, st); err != nil {
		s.logger.Error("Failed to save study", zap.Error(err))
		return nil, err
	}

	membership, err := study.NewUserStudy(input.UserID, st.ID, study.RoleOwner)
	if err != nil {
		return nil, err
	}
	if err := s.userStudyRepo.Save(ctx, membership); err != nil {
		s.logger.Error("Failed to save owner membership", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Study created",
		zap.String("study_id", st.ID.String()),
		zap.String("owner_id", input.UserID.String()))

	return studyInfo(st, study.RoleOwner), nil
}

// GetStudy returns a study the user is a member of
func (s *StudyService) GetStudy(ctx context.Context, userID, studyID uuid.UUID) (*StudyInfo, error) {
	membership, err := s.userStudyRepo.Find(ctx, userID, studyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrForbidden
		}
		return nil, err
	}

	st, err := s.studyRepo.FindByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return studyInfo(st, membership.Role), nil
}

// ListStudies lists the studies the user is a member of
func (s *StudyService) ListStudies(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[StudyInfo], error) {
	studies, err := s.studyRepo.FindAllForUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.studyRepo.CountForUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	infos := make([]StudyInfo, 0, len(studies))
	for i := range studies {
		membership, err := s.userStudyRepo.Find(ctx, userID, studies[i].ID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *studyInfo(&studies[i], membership.Role))
	}

	result := shared.NewPaginated(infos, total, filter.Page, filter.PageSize)
	return &result, nil
}

// UpdateStudy updates a study's names and contact message (owner only)
func (s *StudyService) UpdateStudy(ctx context.Context, input UpdateStudyInput) (*StudyInfo, error) {
	if err := s.Authorize(ctx, input.UserID, input.StudyID, study.RoleOwner); err != nil {
		return nil, err
	}

	st, err := s.studyRepo.FindByID(ctx, input.StudyID)
	if err != nil {
		return nil, err
	}
	if err := st.Update(input.PublicName, input.InternalName, input.ContactMessage); err != nil {
		return nil, err
	}
	if err := s.studyRepo.Save(ctx, st); err != nil {
		s.logger.Error("Failed to update study", zap.Error(err))
		return nil, err
	}

	return studyInfo(st, study.RoleOwner), nil
}

// DeleteStudy soft-deletes a study and everything under it (owner only)
func (s *StudyService) DeleteStudy(ctx context.Context, userID, studyID uuid.UUID) error {
	if err := s.Authorize(ctx, userID, studyID, study.RoleOwner); err != nil {
		return err
	}

	if err := s.studyRepo.Delete(ctx, studyID); err != nil {
		return err
	}

	s.logger.Info("Study deleted",
		zap.String("study_id", studyID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// ListMembers lists a study's collaborators with their account details
func (s *StudyService) ListMembers(ctx context.Context, userID, studyID uuid.UUID) ([]MemberInfo, error) {
	if err := s.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	memberships, err := s.userStudyRepo.FindAllForStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}

	members := make([]MemberInfo, 0, len(memberships))
	for i := range memberships {
		user, err := s.userRepo.FindByID(ctx, memberships[i].UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				// account deleted; membership row is stale
				continue
			}
			return nil, err
		}
		members = append(members, MemberInfo{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Role:      memberships[i].Role,
			AddedAt:   memberships[i].CreatedAt,
		})
	}
	return members, nil
}

// AddMember adds a collaborator by email (owner only)
func (s *StudyService) AddMember(ctx context.Context, input AddMemberInput) (*MemberInfo, error) {
	if err := s.Authorize(ctx, input.OwnerID, input.StudyID, study.RoleOwner); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("USER_NOT_FOUND", "No account exists with this email")
		}
		return nil, err
	}

	if _, err := s.userStudyRepo.Find(ctx, user.ID, input.StudyID); err == nil {
		return nil, shared.NewDomainError("ALREADY_MEMBER", "User is already a collaborator on this study")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	membership, err := study.NewUserStudy(user.ID, input.StudyID, input.Role)
	if err != nil {
		return nil, err
	}
	if err := s.userStudyRepo.Save(ctx, membership); err != nil {
		return nil, err
	}

	s.logger.Info("Collaborator added",
		zap.String("study_id", input.StudyID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(input.Role)))

	return &MemberInfo{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      membership.Role,
		AddedAt:   membership.CreatedAt,
	}, nil
}

// ChangeMemberRole changes a collaborator's role (owner only). The last
// owner of a study can never be demoted.
func (s *StudyService) ChangeMemberRole(ctx context.Context, input ChangeMemberRoleInput) error {
	if err := s.Authorize(ctx, input.OwnerID, input.StudyID, study.RoleOwner); err != nil {
		return err
	}

	membership, err := s.userStudyRepo.Find(ctx, input.TargetUserID, input.StudyID)
	if err != nil {
		return err
	}

	if membership.Role == study.RoleOwner && input.Role != study.RoleOwner {
		owners, err := s.userStudyRepo.CountOwners(ctx, input.StudyID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return shared.ErrLastOwner
		}
	}

	if err := membership.ChangeRole(input.Role); err != nil {
		return err
	}
	return s.userStudyRepo.Save(ctx, membership)
}

// RemoveMember removes a collaborator (owner only, or a member removing
// themselves). The last owner cannot be removed.
func (s *StudyService) RemoveMember(ctx context.Context, input RemoveMemberInput) error {
	if input.ActingUserID != input.TargetUserID {
		if err := s.Authorize(ctx, input.ActingUserID, input.StudyID, study.RoleOwner); err != nil {
			return err
		}
	}

	membership, err := s.userStudyRepo.Find(ctx, input.TargetUserID, input.StudyID)
	if err != nil {
		return err
	}

	if membership.Role == study.RoleOwner {
		owners, err := s.userStudyRepo.CountOwners(ctx, input.StudyID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return shared.ErrLastOwner
		}
	}

	return s.userStudyRepo.Delete(ctx, input.TargetUserID, input.StudyID)
}

func studyInfo(st *study.Study, role study.Role) *StudyInfo {
	return &StudyInfo{
		ID:             st.ID,
		PublicName:     st.PublicName,
		InternalName:   st.InternalName,
		Code:           st.Code,
		ContactMessage: st.ContactMessage,
		Role:           role,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// Ensure StudyService implements Authorizer
var _ Authorizer = (*StudyService)(nil)
