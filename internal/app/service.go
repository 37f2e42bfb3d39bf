package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"spindb/api/internal/auth"
	"spindb/api/internal/authpw"
	"spindb/api/internal/config"
	"spindb/api/internal/discord"
	"spindb/api/internal/email"
	"spindb/api/internal/moderation"
	"spindb/api/internal/rbac"
	"spindb/api/internal/search"
	"spindb/api/internal/store"
	"spindb/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type SubmitReviewInput struct {
	EquipmentID string `json:"equipmentId"`
	Rating      int    `json:"rating"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

type SubmitPlayerEditInput struct {
	PlayerID string            `json:"playerId"`
	Fields   map[string]string `json:"fields"`
}

type SubmitEquipmentInput struct {
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertReview(context.Context, store.Review) error
	GetReview(context.Context, string) (store.Review, error)
	ListReviewsByStatus(context.Context, string, int, int) ([]store.Review, error)
	InsertPlayerEdit(context.Context, store.PlayerEdit) error
	GetPlayerEdit(context.Context, string) (store.PlayerEdit, error)
	ListPlayerEditsByStatus(context.Context, string, int, int) ([]store.PlayerEdit, error)
	InsertEquipmentSubmission(context.Context, store.EquipmentSubmission) error
	GetEquipmentSubmission(context.Context, string) (store.EquipmentSubmission, error)
	ListEquipmentSubmissionsByStatus(context.Context, string, int, int) ([]store.EquipmentSubmission, error)

	GetEquipment(context.Context, string) (store.Equipment, error)
	GetPlayer(context.Context, string) (store.Player, error)
	ListModerationActions(context.Context, string, int) ([]store.ModerationAction, error)

	Ping(ctx context.Context) error
}

// refreshSessionStore is satisfied by both the Postgres store and the Redis
// session store, whichever configuration selects.
type refreshSessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshSessionStore
	engine   *moderation.Engine
	search   *search.Service
	gateway  *discord.Gateway
	notifier *discord.Notifier
	verifier *discord.Verifier
	authpw   *authpw.Service
	email    *email.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, engine *moderation.Engine, searchSvc *search.Service) *Service {
	return NewWithSessionStore(cfg, dataStore, dataStore, engine, searchSvc)
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions refreshSessionStore, engine *moderation.Engine, searchSvc *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		engine:   engine,
		search:   searchSvc,
		authpw:   authpw.NewService(dataStore, cfg.JWTSecret),
		email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
}

// WithGateway attaches the Discord gateway used by the interaction routes.
func (s *Service) WithGateway(gateway *discord.Gateway) *Service {
	s.gateway = gateway
	return s
}

// WithNotifier attaches the webhook notifier fired on new submissions.
func (s *Service) WithNotifier(notifier *discord.Notifier) *Service {
	s.notifier = notifier
	return s
}

// WithVerifier attaches the Ed25519 verifier for the interactions endpoint.
func (s *Service) WithVerifier(verifier *discord.Verifier) *Service {
	s.verifier = verifier
	return s
}

func (s *Service) DiscordConfigured() bool {
	return s.verifier != nil && s.gateway != nil
}

// VerifyDiscordSignature checks the Ed25519 signature over timestamp||body.
// Returns false when no verifier is configured; the endpoint fails closed.
func (s *Service) VerifyDiscordSignature(signature, timestamp string, body []byte) bool {
	if s.verifier == nil {
		return false
	}
	return s.verifier.Verify(signature, timestamp, body)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap warms the search indexes from Postgres. Failures are non-fatal
// and retried on the next restart.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("bootstrap ping: %w", err)
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis backend only persists the user ID; re-read the record so the
	// new access token carries the current role.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ---- moderation (thin adapters over the engine; no transition logic here) ----

// ApproveReview forwards to the engine. Admin callers take the single-step
// privileged path; moderators go through two-stage consensus.
func (s *Service) ApproveReview(ctx context.Context, reviewID, moderatorID string, privileged bool) map[string]any {
	result := s.engine.ApproveReview(ctx, reviewID, moderatorID, privileged)
	if result.Success && result.Outcome == moderation.OutcomeFullyApproved {
		s.emailReviewOutcome(ctx, reviewID, "approved", "")
	}
	return resultPayload(result)
}

func (s *Service) RejectReview(ctx context.Context, reviewID, moderatorID, reason string) map[string]any {
	if !s.engine.RejectReview(ctx, reviewID, moderatorID, reason) {
		return map[string]any{"success": false, "message": "Review not found or already processed"}
	}
	s.emailReviewOutcome(ctx, reviewID, "rejected", reason)
	return map[string]any{"success": true, "message": "Review rejected"}
}

func (s *Service) ApprovePlayerEdit(ctx context.Context, editID, moderatorID string) map[string]any {
	result := s.engine.ApprovePlayerEdit(ctx, editID, moderatorID)
	if result.Success {
		s.emailEditOutcome(ctx, editID, "approved", "")
	}
	return resultPayload(result)
}

func (s *Service) RejectPlayerEdit(ctx context.Context, editID, moderatorID, reason string) map[string]any {
	if !s.engine.RejectPlayerEdit(ctx, editID, moderatorID, reason) {
		return map[string]any{"success": false, "message": "Player edit not found or already processed"}
	}
	s.emailEditOutcome(ctx, editID, "rejected", reason)
	return map[string]any{"success": true, "message": "Player edit rejected"}
}

func (s *Service) ApproveEquipmentSubmission(ctx context.Context, submissionID, moderatorID string) map[string]any {
	result := s.engine.ApproveEquipmentSubmission(ctx, submissionID, moderatorID)
	if result.Success {
		s.emailSubmissionOutcome(ctx, submissionID, "approved", "")
	}
	return resultPayload(result)
}

func (s *Service) RejectEquipmentSubmission(ctx context.Context, submissionID, moderatorID, reason string) map[string]any {
	if !s.engine.RejectEquipmentSubmission(ctx, submissionID, moderatorID, reason) {
		return map[string]any{"success": false, "message": "Submission not found or already processed"}
	}
	s.emailSubmissionOutcome(ctx, submissionID, "rejected", reason)
	return map[string]any{"success": true, "message": "Submission rejected"}
}

func (s *Service) ModerationStats(ctx context.Context) map[string]any {
	return s.engine.Stats(ctx)
}

func (s *Service) PendingReviews(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	reviews, err := s.store.ListReviewsByStatus(ctx, store.StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, map[string]any{
			"id":          review.ID,
			"equipmentId": review.EquipmentID,
			"submitterId": review.SubmitterID,
			"rating":      review.Rating,
			"title":       review.Title,
			"status":      review.Status,
			"createdAt":   review.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) PendingPlayerEdits(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	edits, err := s.store.ListPlayerEditsByStatus(ctx, store.StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(edits))
	for _, edit := range edits {
		items = append(items, map[string]any{
			"id":          edit.ID,
			"playerId":    edit.PlayerID,
			"submitterId": edit.SubmitterID,
			"fields":      edit.Fields,
			"status":      edit.Status,
			"createdAt":   edit.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) PendingEquipmentSubmissions(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	submissions, err := s.store.ListEquipmentSubmissionsByStatus(ctx, store.StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(submissions))
	for _, sub := range submissions {
		items = append(items, map[string]any{
			"id":          sub.ID,
			"submitterId": sub.SubmitterID,
			"name":        sub.Name,
			"brand":       sub.Brand,
			"category":    sub.Category,
			"status":      sub.Status,
			"createdAt":   sub.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) ModerationActions(ctx context.Context, itemID string, limit int) ([]map[string]any, error) {
	actions, err := s.store.ListModerationActions(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(actions))
	for _, action := range actions {
		items = append(items, map[string]any{
			"id":          action.ID,
			"itemType":    action.ItemType,
			"itemId":      action.ItemID,
			"moderatorId": action.ModeratorID,
			"action":      action.Action,
			"reason":      action.Reason,
			"createdAt":   action.CreatedAt,
		})
	}
	return items, nil
}

// ---- intake ----

// SubmitReview stores a pending review and pings the moderation webhook.
// Notification delivery is best-effort and never fails the submission.
func (s *Service) SubmitReview(ctx context.Context, session Session, input SubmitReviewInput) (map[string]any, error) {
	if strings.TrimSpace(input.EquipmentID) == "" || strings.TrimSpace(input.Body) == "" {
		return nil, validationError("equipmentId and body are required")
	}
	if input.Rating < 1 || input.Rating > 10 {
		return nil, validationError("rating must be between 1 and 10")
	}

	equipment, err := s.store.GetEquipment(ctx, input.EquipmentID)
	if err != nil {
		return nil, notFoundError("Equipment not found")
	}

	review := store.Review{
		ID:          util.NewID("rev"),
		EquipmentID: equipment.ID,
		SubmitterID: session.UserID,
		Rating:      input.Rating,
		Title:       strings.TrimSpace(input.Title),
		Body:        input.Body,
		Status:      store.StatusPending,
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if ok, err := s.notifier.NotifyNewReview(notifyCtx, review, equipment.Name); err != nil {
				log.Printf("app: review webhook misconfigured: %v", err)
			} else if !ok {
				log.Printf("app: review webhook delivery failed for %s", review.ID)
			}
		}()
	}

	return map[string]any{"id": review.ID, "status": review.Status}, nil
}

func (s *Service) SubmitPlayerEdit(ctx context.Context, session Session, input SubmitPlayerEditInput) (map[string]any, error) {
	if strings.TrimSpace(input.PlayerID) == "" || len(input.Fields) == 0 {
		return nil, validationError("playerId and fields are required")
	}

	player, err := s.store.GetPlayer(ctx, input.PlayerID)
	if err != nil {
		return nil, notFoundError("Player not found")
	}

	edit := store.PlayerEdit{
		ID:          util.NewID("edit"),
		PlayerID:    player.ID,
		SubmitterID: session.UserID,
		Fields:      input.Fields,
		Status:      store.StatusPending,
	}
	if err := s.store.InsertPlayerEdit(ctx, edit); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if ok, err := s.notifier.NotifyNewPlayerEdit(notifyCtx, edit, player.Name); err != nil {
				log.Printf("app: player edit webhook misconfigured: %v", err)
			} else if !ok {
				log.Printf("app: player edit webhook delivery failed for %s", edit.ID)
			}
		}()
	}

	return map[string]any{"id": edit.ID, "status": edit.Status}, nil
}

func (s *Service) SubmitEquipment(ctx context.Context, session Session, input SubmitEquipmentInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, validationError("name and category are required")
	}

	submission := store.EquipmentSubmission{
		ID:          util.NewID("sub"),
		SubmitterID: session.UserID,
		Name:        strings.TrimSpace(input.Name),
		Brand:       strings.TrimSpace(input.Brand),
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Status:      store.StatusPending,
	}
	if err := s.store.InsertEquipmentSubmission(ctx, submission); err != nil {
		return nil, err
	}

	return map[string]any{"id": submission.ID, "status": submission.Status}, nil
}

// ---- search ----

func (s *Service) Search(q, filterType, category string, limit, offset int) map[string]any {
	resp := s.search.Search(search.Query{
		Text:           q,
		FilterType:     search.ResultType(filterType),
		FilterCategory: category,
		Limit:          limit,
		Offset:         offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}
}

// ---- discord plumbing ----

var errGatewayNotConfigured = errors.New("discord gateway not configured")

func (s *Service) HandleDiscordInteraction(ctx context.Context, in discord.Interaction) (discord.Response, error) {
	if s.gateway == nil {
		return discord.Response{}, errGatewayNotConfigured
	}
	return s.gateway.HandleInteraction(ctx, in), nil
}

func (s *Service) HandleDiscordPrefixCommand(content string) (discord.Response, bool, error) {
	if s.gateway == nil {
		return discord.Response{}, false, errGatewayNotConfigured
	}
	resp, ok := s.gateway.HandlePrefixCommand(content)
	return resp, ok, nil
}

// ---- outcome emails (best-effort) ----

func (s *Service) emailReviewOutcome(ctx context.Context, reviewID, outcome, notes string) {
	if !s.email.IsConfigured() {
		return
	}
	review, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return
	}
	s.sendOutcomeEmail(ctx, review.SubmitterID, "review", outcome, notes)
}

func (s *Service) emailEditOutcome(ctx context.Context, editID, outcome, notes string) {
	if !s.email.IsConfigured() {
		return
	}
	edit, err := s.store.GetPlayerEdit(ctx, editID)
	if err != nil {
		return
	}
	s.sendOutcomeEmail(ctx, edit.SubmitterID, "player edit", outcome, notes)
}

func (s *Service) emailSubmissionOutcome(ctx context.Context, submissionID, outcome, notes string) {
	if !s.email.IsConfigured() {
		return
	}
	submission, err := s.store.GetEquipmentSubmission(ctx, submissionID)
	if err != nil {
		return
	}
	s.sendOutcomeEmail(ctx, submission.SubmitterID, "equipment submission", outcome, notes)
}

func (s *Service) sendOutcomeEmail(ctx context.Context, submitterID, itemLabel, outcome, notes string) {
	user, err := s.store.GetUserByID(ctx, submitterID)
	if err != nil || user.Email == "" {
		return
	}
	go func() {
		if err := s.email.SendModerationOutcomeEmail(user.Email, user.DisplayName, itemLabel, outcome, notes); err != nil {
			log.Printf("app: outcome email to %s failed: %v", user.Email, err)
		}
	}()
}

func resultPayload(result moderation.Result) map[string]any {
	return map[string]any{
		"success": result.Success,
		"outcome": string(result.Outcome),
		"message": result.Message,
	}
}
