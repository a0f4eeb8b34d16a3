package study

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pingboard/backend/internal/domain/identity"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
)

type fakeStudyRepo struct {
	studies map[uuid.UUID]*study.Study
}

func newFakeStudyRepo() *fakeStudyRepo {
	return &fakeStudyRepo{studies: make(map[uuid.UUID]*study.Study)}
}

func (r *fakeStudyRepo) FindByID(_ context.Context, id uuid.UUID) (*study.Study, error) {
	st, ok := r.studies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *fakeStudyRepo) FindByCode(_ context.Context, code string) (*study.Study, error) {
	for _, st := range r.studies {
		if st.Code == code {
			cp := *st
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeStudyRepo) FindAllForUser(_ context.Context, _ uuid.UUID, _ shared.Filter) ([]study.Study, error) {
	out := make([]study.Study, 0, len(r.studies))
	for _, st := range r.studies {
		out = append(out, *st)
	}
	return out, nil
}

func (r *fakeStudyRepo) CountForUser(_ context.Context, _ uuid.UUID, _ shared.Filter) (int64, error) {
	return int64(len(r.studies)), nil
}

func (r *fakeStudyRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, st := range r.studies {
		if st.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStudyRepo) Save(_ context.Context, st *study.Study) error {
	cp := *st
	r.studies[st.ID] = &cp
	return nil
}

func (r *fakeStudyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.studies, id)
	return nil
}

type membershipKey struct {
	userID  uuid.UUID
	studyID uuid.UUID
}

type fakeUserStudyRepo struct {
	memberships map[membershipKey]*study.UserStudy
}

func newFakeUserStudyRepo() *fakeUserStudyRepo {
	return &fakeUserStudyRepo{memberships: make(map[membershipKey]*study.UserStudy)}
}

func (r *fakeUserStudyRepo) Find(_ context.Context, userID, studyID uuid.UUID) (*study.UserStudy, error) {
	us, ok := r.memberships[membershipKey{userID, studyID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *us
	return &cp, nil
}

func (r *fakeUserStudyRepo) FindAllForStudy(_ context.Context, studyID uuid.UUID) ([]study.UserStudy, error) {
	var out []study.UserStudy
	for k, us := range r.memberships {
		if k.studyID == studyID {
			out = append(out, *us)
		}
	}
	return out, nil
}

func (r *fakeUserStudyRepo) CountOwners(_ context.Context, studyID uuid.UUID) (int64, error) {
	var n int64
	for k, us := range r.memberships {
		if k.studyID == studyID && us.Role == study.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserStudyRepo) Save(_ context.Context, us *study.UserStudy) error {
	cp := *us
	r.memberships[membershipKey{us.UserID, us.StudyID}] = &cp
	return nil
}

func (r *fakeUserStudyRepo) Delete(_ context.Context, userID, studyID uuid.UUID) error {
	delete(r.memberships, membershipKey{userID, studyID})
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*identity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*identity.User)}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(context.Background(), email)
	return err == nil, nil
}

func (r *fakeUserRepo) Save(_ context.Context, u *identity.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.users, id)
	return nil
}

type serviceFixture struct {
	svc           *StudyService
	studyRepo     *fakeStudyRepo
	userStudyRepo *fakeUserStudyRepo
	userRepo      *fakeUserRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		studyRepo:     newFakeStudyRepo(),
		userStudyRepo: newFakeUserStudyRepo(),
		userRepo:      newFakeUserRepo(),
	}
	f.svc = NewStudyService(f.studyRepo, f.userStudyRepo, f.userRepo, zap.NewNop())
	return f
}

func (f *serviceFixture) addUser(t *testing.T, email string) *identity.User {
	t.Helper()
	u, err := identity.NewUser(email, "password123", "Ada", "Lovelace", "")
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Save(context.Background(), u))
	return u
}

func (f *serviceFixture) createStudy(t *testing.T, ownerID uuid.UUID) *StudyInfo {
	t.Helper()
	info, err := f.svc.CreateStudy(context.Background(), CreateStudyInput{
		UserID:       ownerID,
		PublicName:   "Sleep Study",
		InternalName: "sleep-2025",
	})
	require.NoError(t, err)
	return info
}

func TestStudyService_CreateStudy(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")

	info := f.createStudy(t, owner.ID)

	assert.Equal(t, "Sleep Study", info.PublicName)
	assert.Equal(t, study.RoleOwner, info.Role)
	assert.Len(t, info.Code, study.SignupCodeLength)

	// The creator becomes the study's owner
	us, err := f.userStudyRepo.Find(context.Background(), owner.ID, info.ID)
	require.NoError(t, err)
	assert.Equal(t, study.RoleOwner, us.Role)
}

func TestStudyService_Authorize(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	viewer := f.addUser(t, "viewer@example.com")
	outsider := f.addUser(t, "outsider@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	us, err := study.NewUserStudy(viewer.ID, info.ID, study.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, f.userStudyRepo.Save(ctx, us))

	assert.NoError(t, f.svc.Authorize(ctx, owner.ID, info.ID, study.RoleOwner))
	assert.NoError(t, f.svc.Authorize(ctx, viewer.ID, info.ID, study.RoleViewer))
	assert.ErrorIs(t, f.svc.Authorize(ctx, viewer.ID, info.ID, study.RoleEditor), shared.ErrForbidden)
	assert.ErrorIs(t, f.svc.Authorize(ctx, outsider.ID, info.ID, study.RoleViewer), shared.ErrForbidden)
}

func TestStudyService_GetStudy_NonMember(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	outsider := f.addUser(t, "outsider@example.com")
	info := f.createStudy(t, owner.ID)

	_, err := f.svc.GetStudy(context.Background(), outsider.ID, info.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestStudyService_UpdateStudy_RequiresOwner(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	editor := f.addUser(t, "editor@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	us, err := study.NewUserStudy(editor.ID, info.ID, study.RoleEditor)
	require.NoError(t, err)
	require.NoError(t, f.userStudyRepo.Save(ctx, us))

	_, err = f.svc.UpdateStudy(ctx, UpdateStudyInput{
		UserID: editor.ID, StudyID: info.ID,
		PublicName: "New", InternalName: "new",
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := f.svc.UpdateStudy(ctx, UpdateStudyInput{
		UserID: owner.ID, StudyID: info.ID,
		PublicName: "New", InternalName: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.PublicName)
	assert.Equal(t, info.Code, updated.Code)
}

func TestStudyService_AddMember(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	colleague := f.addUser(t, "colleague@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	member, err := f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "colleague@example.com", Role: study.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, colleague.ID, member.UserID)
	assert.Equal(t, study.RoleEditor, member.Role)

	// Adding twice conflicts
	_, err = f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "colleague@example.com", Role: study.RoleViewer,
	})
	require.Error(t, err)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "ALREADY_MEMBER", derr.Code)

	// Unknown email
	_, err = f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "ghost@example.com", Role: study.RoleViewer,
	})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "USER_NOT_FOUND", derr.Code)
}

func TestStudyService_ChangeMemberRole_LastOwner(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	err := f.svc.ChangeMemberRole(ctx, ChangeMemberRoleInput{
		OwnerID: owner.ID, StudyID: info.ID,
		TargetUserID: owner.ID, Role: study.RoleViewer,
	})
	assert.ErrorIs(t, err, shared.ErrLastOwner)

	// A second owner unblocks the demotion
	second := f.addUser(t, "second@example.com")
	_, err = f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "second@example.com", Role: study.RoleOwner,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangeMemberRole(ctx, ChangeMemberRoleInput{
		OwnerID: second.ID, StudyID: info.ID,
		TargetUserID: owner.ID, Role: study.RoleViewer,
	}))
	us, err := f.userStudyRepo.Find(ctx, owner.ID, info.ID)
	require.NoError(t, err)
	assert.Equal(t, study.RoleViewer, us.Role)
}

func TestStudyService_RemoveMember(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	editor := f.addUser(t, "editor@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	_, err := f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "editor@example.com", Role: study.RoleEditor,
	})
	require.NoError(t, err)

	// The last owner cannot remove themselves
	err = f.svc.RemoveMember(ctx, RemoveMemberInput{
		ActingUserID: owner.ID, StudyID: info.ID, TargetUserID: owner.ID,
	})
	assert.ErrorIs(t, err, shared.ErrLastOwner)

	// A member may leave on their own
	require.NoError(t, f.svc.RemoveMember(ctx, RemoveMemberInput{
		ActingUserID: editor.ID, StudyID: info.ID, TargetUserID: editor.ID,
	}))
	_, err = f.userStudyRepo.Find(ctx, editor.ID, info.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Non-owners cannot remove others
	other := f.addUser(t, "other@example.com")
	_, err = f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "other@example.com", Role: study.RoleViewer,
	})
	require.NoError(t, err)
	err = f.svc.RemoveMember(ctx, RemoveMemberInput{
		ActingUserID: other.ID, StudyID: info.ID, TargetUserID: owner.ID,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestStudyService_ListMembers_SkipsDeletedAccounts(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.addUser(t, "owner@example.com")
	ghost := f.addUser(t, "ghost@example.com")
	info := f.createStudy(t, owner.ID)
	ctx := context.Background()

	_, err := f.svc.AddMember(ctx, AddMemberInput{
		OwnerID: owner.ID, StudyID: info.ID,
		Email: "ghost@example.com", Role: study.RoleViewer,
	})
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Delete(ctx, ghost.ID))

	members, err := f.svc.ListMembers(ctx, owner.ID, info.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, owner.ID, members[0].UserID)
}
