package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"spindb/api/internal/authpw"
	"spindb/api/internal/config"
	"spindb/api/internal/email"
	"spindb/api/internal/moderation"
	"spindb/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn    func(context.Context, string) (store.User, error)
	getUserByEmailFn func(context.Context, string) (store.User, error)
	createUserFn     func(context.Context, store.User) error
	verifyEmailFn    func(context.Context, string) error

	saveRefreshSessionFn   func(context.Context, string, string, time.Time) error
	lookupRefreshSessionFn func(context.Context, string) (store.User, error)
	revokeRefreshSessionFn func(context.Context, string) error
	revokeAccessTokenFn    func(context.Context, string, time.Time) error
	isAccessTokenRevokedFn func(context.Context, string) (bool, error)

	insertReviewFn             func(context.Context, store.Review) error
	getReviewFn                func(context.Context, string) (store.Review, error)
	markReviewAwaitingSecondFn func(context.Context, string) (bool, error)
	publishReviewFn            func(context.Context, string, string, ...string) (bool, error)
	rejectReviewFn             func(context.Context, string, string, string) (bool, error)
	listReviewsByStatusFn      func(context.Context, string, int, int) ([]store.Review, error)

	insertPlayerEditFn       func(context.Context, store.PlayerEdit) error
	getPlayerEditFn          func(context.Context, string) (store.PlayerEdit, error)
	mergePlayerFieldsFn      func(context.Context, string, map[string]string) error
	approvePlayerEditFn      func(context.Context, string, string) (bool, error)
	rejectPlayerEditFn       func(context.Context, string, string, string) (bool, error)
	listPlayerEditsByStatusFn func(context.Context, string, int, int) ([]store.PlayerEdit, error)

	insertEquipmentSubmissionFn       func(context.Context, store.EquipmentSubmission) error
	getEquipmentSubmissionFn          func(context.Context, string) (store.EquipmentSubmission, error)
	insertEquipmentFn                 func(context.Context, store.Equipment) error
	approveEquipmentSubmissionFn      func(context.Context, string, string) (bool, error)
	rejectEquipmentSubmissionFn       func(context.Context, string, string, string) (bool, error)
	listEquipmentSubmissionsByStatusFn func(context.Context, string, int, int) ([]store.EquipmentSubmission, error)

	getEquipmentFn func(context.Context, string) (store.Equipment, error)
	getPlayerFn    func(context.Context, string) (store.Player, error)

	insertModerationActionFn func(context.Context, store.ModerationAction) error
	approvedModeratorsFn     func(context.Context, string) ([]string, error)
	listModerationActionsFn  func(context.Context, string, int) ([]store.ModerationAction, error)

	pingFn func(context.Context) error
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, addr string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, addr)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeStore) VerifyUserEmail(ctx context.Context, token string) error {
	if f.verifyEmailFn != nil {
		return f.verifyEmailFn(ctx, token)
	}
	return nil
}

func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }
func (f *fakeStore) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}
func (f *fakeStore) MarkPasswordResetUsed(context.Context, string) error { return nil }

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, expiresAt)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) InsertReview(ctx context.Context, review store.Review) error {
	if f.insertReviewFn != nil {
		return f.insertReviewFn(ctx, review)
	}
	return nil
}

func (f *fakeStore) GetReview(ctx context.Context, reviewID string) (store.Review, error) {
	if f.getReviewFn != nil {
		return f.getReviewFn(ctx, reviewID)
	}
	return store.Review{}, sql.ErrNoRows
}

func (f *fakeStore) MarkReviewAwaitingSecond(ctx context.Context, reviewID string) (bool, error) {
	if f.markReviewAwaitingSecondFn != nil {
		return f.markReviewAwaitingSecondFn(ctx, reviewID)
	}
	return false, nil
}

func (f *fakeStore) PublishReview(ctx context.Context, reviewID, moderatorID string, from ...string) (bool, error) {
	if f.publishReviewFn != nil {
		return f.publishReviewFn(ctx, reviewID, moderatorID, from...)
	}
	return false, nil
}

func (f *fakeStore) RejectReview(ctx context.Context, reviewID, moderatorID, notes string) (bool, error) {
	if f.rejectReviewFn != nil {
		return f.rejectReviewFn(ctx, reviewID, moderatorID, notes)
	}
	return false, nil
}

func (f *fakeStore) ListReviewsByStatus(ctx context.Context, status string, limit, offset int) ([]store.Review, error) {
	if f.listReviewsByStatusFn != nil {
		return f.listReviewsByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (f *fakeStore) InsertPlayerEdit(ctx context.Context, edit store.PlayerEdit) error {
	if f.insertPlayerEditFn != nil {
		return f.insertPlayerEditFn(ctx, edit)
	}
	return nil
}

func (f *fakeStore) GetPlayerEdit(ctx context.Context, editID string) (store.PlayerEdit, error) {
	if f.getPlayerEditFn != nil {
		return f.getPlayerEditFn(ctx, editID)
	}
	return store.PlayerEdit{}, sql.ErrNoRows
}

func (f *fakeStore) MergePlayerFields(ctx context.Context, playerID string, fields map[string]string) error {
	if f.mergePlayerFieldsFn != nil {
		return f.mergePlayerFieldsFn(ctx, playerID, fields)
	}
	return nil
}

func (f *fakeStore) ApprovePlayerEdit(ctx context.Context, editID, moderatorID string) (bool, error) {
	if f.approvePlayerEditFn != nil {
		return f.approvePlayerEditFn(ctx, editID, moderatorID)
	}
	return false, nil
}

func (f *fakeStore) RejectPlayerEdit(ctx context.Context, editID, moderatorID, notes string) (bool, error) {
	if f.rejectPlayerEditFn != nil {
		return f.rejectPlayerEditFn(ctx, editID, moderatorID, notes)
	}
	return false, nil
}

func (f *fakeStore) ListPlayerEditsByStatus(ctx context.Context, status string, limit, offset int) ([]store.PlayerEdit, error) {
	if f.listPlayerEditsByStatusFn != nil {
		return f.listPlayerEditsByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (f *fakeStore) InsertEquipmentSubmission(ctx context.Context, submission store.EquipmentSubmission) error {
	if f.insertEquipmentSubmissionFn != nil {
		return f.insertEquipmentSubmissionFn(ctx, submission)
	}
	return nil
}

func (f *fakeStore) GetEquipmentSubmission(ctx context.Context, submissionID string) (store.EquipmentSubmission, error) {
	if f.getEquipmentSubmissionFn != nil {
		return f.getEquipmentSubmissionFn(ctx, submissionID)
	}
	return store.EquipmentSubmission{}, sql.ErrNoRows
}

func (f *fakeStore) InsertEquipment(ctx context.Context, item store.Equipment) error {
	if f.insertEquipmentFn != nil {
		return f.insertEquipmentFn(ctx, item)
	}
	return nil
}

func (f *fakeStore) ApproveEquipmentSubmission(ctx context.Context, submissionID, moderatorID string) (bool, error) {
	if f.approveEquipmentSubmissionFn != nil {
		return f.approveEquipmentSubmissionFn(ctx, submissionID, moderatorID)
	}
	return false, nil
}

func (f *fakeStore) RejectEquipmentSubmission(ctx context.Context, submissionID, moderatorID, notes string) (bool, error) {
	if f.rejectEquipmentSubmissionFn != nil {
		return f.rejectEquipmentSubmissionFn(ctx, submissionID, moderatorID, notes)
	}
	return false, nil
}

func (f *fakeStore) ListEquipmentSubmissionsByStatus(ctx context.Context, status string, limit, offset int) ([]store.EquipmentSubmission, error) {
	if f.listEquipmentSubmissionsByStatusFn != nil {
		return f.listEquipmentSubmissionsByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (f *fakeStore) GetEquipment(ctx context.Context, equipmentID string) (store.Equipment, error) {
	if f.getEquipmentFn != nil {
		return f.getEquipmentFn(ctx, equipmentID)
	}
	return store.Equipment{}, sql.ErrNoRows
}

func (f *fakeStore) GetPlayer(ctx context.Context, playerID string) (store.Player, error) {
	if f.getPlayerFn != nil {
		return f.getPlayerFn(ctx, playerID)
	}
	return store.Player{}, sql.ErrNoRows
}

func (f *fakeStore) InsertModerationAction(ctx context.Context, action store.ModerationAction) error {
	if f.insertModerationActionFn != nil {
		return f.insertModerationActionFn(ctx, action)
	}
	return nil
}

func (f *fakeStore) ApprovedModerators(ctx context.Context, itemID string) ([]string, error) {
	if f.approvedModeratorsFn != nil {
		return f.approvedModeratorsFn(ctx, itemID)
	}
	return nil, nil
}

func (f *fakeStore) ListModerationActions(ctx context.Context, itemID string, limit int) ([]store.ModerationAction, error) {
	if f.listModerationActionsFn != nil {
		return f.listModerationActionsFn(ctx, itemID, limit)
	}
	return nil, nil
}

func (f *fakeStore) ReviewStatusCounts(context.Context) (store.StatusCounts, error) {
	return store.StatusCounts{}, nil
}
func (f *fakeStore) PlayerEditStatusCounts(context.Context) (store.StatusCounts, error) {
	return store.StatusCounts{}, nil
}
func (f *fakeStore) EquipmentSubmissionStatusCounts(context.Context) (store.StatusCounts, error) {
	return store.StatusCounts{}, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 720 * time.Hour,
	}
}

func newTestService(fs *fakeStore) *Service {
	cfg := testConfig()
	return &Service{
		cfg:      cfg,
		store:    fs,
		sessions: fs,
		engine:   moderation.New(fs),
		authpw:   authpw.NewService(fs, cfg.JWTSecret),
		email:    email.NewService(email.Config{}),
	}
}

func TestCreateSessionRoundTrip(t *testing.T) {
	user := store.User{ID: "user_1", DisplayName: "Mika", Role: "moderator"}
	saved := map[string]string{}
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			if id != user.ID {
				return store.User{}, sql.ErrNoRows
			}
			return user, nil
		},
		saveRefreshSessionFn: func(_ context.Context, tokenHash, userID string, _ time.Time) error {
			saved[tokenHash] = userID
			return nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.CreateSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected both access and refresh tokens")
	}
	if session.Role != "moderator" || session.UserName != "Mika" {
		t.Errorf("unexpected session identity: %+v", session)
	}
	if len(saved) != 1 {
		t.Errorf("expected one stored refresh session, got %d", len(saved))
	}

	parsed, err := svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	if parsed.UserID != user.ID || parsed.JTI != session.JTI {
		t.Errorf("parsed session mismatch: %+v", parsed)
	}
}

func TestSessionFromTokenRejectsRevokedJTI(t *testing.T) {
	user := store.User{ID: "user_1", DisplayName: "Mika", Role: "moderator"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) { return user, nil },
		isAccessTokenRevokedFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.CreateSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.SessionFromToken(context.Background(), session.Token); err == nil {
		t.Fatal("expected revoked token to be rejected")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	user := store.User{ID: "user_1", DisplayName: "Mika", Role: "viewer"}
	sessions := map[string]string{}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) { return user, nil },
		saveRefreshSessionFn: func(_ context.Context, tokenHash, userID string, _ time.Time) error {
			sessions[tokenHash] = userID
			return nil
		},
		lookupRefreshSessionFn: func(_ context.Context, tokenHash string) (store.User, error) {
			if _, ok := sessions[tokenHash]; !ok {
				return store.User{}, sql.ErrNoRows
			}
			return user, nil
		},
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			delete(sessions, tokenHash)
			return nil
		},
	}
	svc := newTestService(fs)

	first, err := svc.CreateSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token must not be accepted twice.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Fatal("expected consumed refresh token to be rejected")
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	var revokedJTI string
	var revokedRefresh bool
	fs := &fakeStore{
		revokeAccessTokenFn: func(_ context.Context, jti string, _ time.Time) error {
			revokedJTI = jti
			return nil
		},
		revokeRefreshSessionFn: func(context.Context, string) error {
			revokedRefresh = true
			return nil
		},
	}
	svc := newTestService(fs)

	session := Session{JTI: "jti_1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := svc.Logout(context.Background(), session, "some-refresh-token"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if revokedJTI != "jti_1" {
		t.Errorf("expected access token jti_1 revoked, got %q", revokedJTI)
	}
	if !revokedRefresh {
		t.Error("expected refresh session revoked")
	}
}
