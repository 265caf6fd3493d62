package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/followup"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ocr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/tasks"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const userIDContextKey = "compass_user_id"

var (
	errMissingSSOVerifier     = errors.New("sso verifier dependency required")
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingTeamService     = errors.New("team service dependency required")
	errMissingActivityService = errors.New("activity service dependency required")
	errMissingPostsService    = errors.New("posts service dependency required")
	errMissingContactsService = errors.New("contacts service dependency required")
	errMissingDispatcher      = errors.New("realtime dispatcher dependency required")
	errMissingFeeds           = errors.New("feed manager dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// SSOVerifier validates identity-provider tokens presented at login.
type SSOVerifier interface {
	Verify(ctx context.Context, token string) (auth.SessionClaims, error)
}

// BackendTokenManager issues and validates backend session tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.SessionClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the services behind it. Followup and
// Scanner are optional; their routes answer with a structured unavailable
// response when unset. Scheduler is optional; without it task reads skip
// reminder planning.
type Dependencies struct {
	SSOVerifier     SSOVerifier
	TokenManager    BackendTokenManager
	UsersService    *users.Service
	TeamService     *team.Service
	ActivityService *activity.Service
	PostsService    *posts.Service
	ContactsService *contacts.Service
	Feeds           *activity.FeedManager
	Followup        *followup.Generator
	Scanner         *ocr.Scanner
	Dispatcher      *realtime.Dispatcher
	Scheduler       *notify.Scheduler
	TaskConfig      tasks.Config
	Logger          *zap.Logger
}

// NewHTTPHandler assembles the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SSOVerifier == nil {
		return nil, errMissingSSOVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.TeamService == nil {
		return nil, errMissingTeamService
	}
	if deps.ActivityService == nil {
		return nil, errMissingActivityService
	}
	if deps.PostsService == nil {
		return nil, errMissingPostsService
	}
	if deps.ContactsService == nil {
		return nil, errMissingContactsService
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if deps.Feeds == nil {
		return nil, errMissingFeeds
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:   deps.SSOVerifier,
		tokens:     deps.TokenManager,
		users:      deps.UsersService,
		team:       deps.TeamService,
		activity:   deps.ActivityService,
		posts:      deps.PostsService,
		contacts:   deps.ContactsService,
		feeds:      deps.Feeds,
		followup:   deps.Followup,
		scanner:    deps.Scanner,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		taskConfig: deps.TaskConfig,
		logger:     logger,
		reminders:  make(map[string]*tasks.ReminderPlanner),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/conferences", handler.handleCreateConference)
	protected.GET("/conferences", handler.handleListConferences)
	protected.GET("/conferences/:id/activities", handler.handleListActivities)
	protected.GET("/conferences/:id/checkins", handler.handleListCheckIns)
	protected.GET("/conferences/:id/contacts", handler.handleListContacts)
	protected.GET("/conferences/:id/posts", handler.handleListPosts)
	protected.GET("/conferences/:id/tasks", handler.handleListTasks)
	protected.GET("/conferences/:id/stream", handler.handleStream)
	protected.POST("/checkins", handler.handleSubmitCheckIn)
	protected.POST("/contacts", handler.handleCaptureContact)
	protected.GET("/contacts/:id", handler.handleGetContact)
	protected.POST("/sessions/attend", handler.handleAttendSession)
	protected.POST("/posts", handler.handleSchedulePost)
	protected.POST("/posts/:id/publish", handler.handlePublishPost)
	protected.POST("/posts/:id/engage", handler.handleEngagePost)
	protected.POST("/followup/generate", handler.handleGenerateFollowup)
	protected.POST("/ocr/scan", handler.handleScanBadge)

	return router, nil
}

type httpHandler struct {
	verifier   SSOVerifier
	tokens     BackendTokenManager
	users      *users.Service
	team       *team.Service
	activity   *activity.Service
	posts      *posts.Service
	contacts   *contacts.Service
	feeds      *activity.FeedManager
	followup   *followup.Generator
	scanner    *ocr.Scanner
	dispatcher *realtime.Dispatcher
	scheduler  *notify.Scheduler
	taskConfig tasks.Config
	logger     *zap.Logger

	remindersMu sync.Mutex
	reminders   map[string]*tasks.ReminderPlanner
}

type loginRequestPayload struct {
	IDToken string `json:"id_token"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("sso token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.users.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
		return
	}
	claims.Subject = userID

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		UserID:      userID,
	})
}

type conferenceRequestPayload struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	StartsAtS int64  `json:"starts_at_s"`
	EndsAtS   int64  `json:"ends_at_s"`
}

type conferencePayload struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	StartsAtS int64  `json:"starts_at_s"`
	EndsAtS   int64  `json:"ends_at_s"`
}

func conferenceToPayload(conference team.Conference) conferencePayload {
	return conferencePayload{
		ID:        conference.ID,
		TeamID:    conference.TeamID,
		Name:      conference.Name,
		Location:  conference.Location,
		StartsAtS: conference.StartsAt.UTC().Unix(),
		EndsAtS:   conference.EndsAt.UTC().Unix(),
	}
}

func (h *httpHandler) handleCreateConference(c *gin.Context) {
	var request conferenceRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	conference, err := h.team.CreateConference(c.Request.Context(), team.Conference{
		TeamID:   request.TeamID,
		Name:     request.Name,
		Location: request.Location,
		StartsAt: time.Unix(request.StartsAtS, 0).UTC(),
		EndsAt:   time.Unix(request.EndsAtS, 0).UTC(),
	})
	if err != nil {
		var serviceErr *team.ServiceError
		if errors.As(err, &serviceErr) && strings.Contains(serviceErr.Code(), "missing_fields") {
			c.JSON(http.StatusBadRequest, gin.H{"error": serviceErr.Code()})
			return
		}
		h.logger.Error("conference creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conference_create_failed"})
		return
	}
	c.JSON(http.StatusCreated, conferenceToPayload(conference))
}

func (h *httpHandler) handleListConferences(c *gin.Context) {
	teamID := c.Query("team_id")
	if strings.TrimSpace(teamID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_id_required"})
		return
	}
	conferences, err := h.team.ListConferences(c.Request.Context(), teamID)
	if err != nil {
		h.logger.Error("conference list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conference_list_failed"})
		return
	}
	payloads := make([]conferencePayload, 0, len(conferences))
	for _, conference := range conferences {
		payloads = append(payloads, conferenceToPayload(conference))
	}
	c.JSON(http.StatusOK, gin.H{"conferences": payloads})
}

type activityPayload struct {
	ID              string `json:"id"`
	TeamID          string `json:"team_id"`
	ConferenceID    string `json:"conference_id"`
	UserID          string `json:"user_id"`
	ActivityType    string `json:"activity_type"`
	EntityID        string `json:"entity_id,omitempty"`
	Description     string `json:"description"`
	CreatedAtS      int64  `json:"created_at_s"`
	UserDisplayName string `json:"user_display_name,omitempty"`
}

func activityToPayload(entry activity.Entry) activityPayload {
	return activityPayload{
		ID:              entry.ID,
		TeamID:          entry.TeamID,
		ConferenceID:    entry.ConferenceID,
		UserID:          entry.UserID,
		ActivityType:    string(entry.ActivityType),
		EntityID:        entry.EntityID,
		Description:     entry.Description,
		CreatedAtS:      entry.CreatedAt.UTC().Unix(),
		UserDisplayName: entry.UserDisplayName,
	}
}

// handleListActivities answers from the per-conference feed mirror. The
// mirror loads from the store on first access and tracks change-feed events
// afterwards, so reads here never touch the database on the hot path.
func (h *httpHandler) handleListActivities(c *gin.Context) {
	conferenceID := c.Param("id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}
	feed, err := h.feeds.Feed(c.Request.Context(), conferenceID)
	if err != nil {
		h.logger.Error("activity load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activity_load_failed"})
		return
	}
	entries := feed.Activities()
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	payloads := make([]activityPayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, activityToPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"activities": payloads})
}

type checkInPayload struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conference_id"`
	UserID       string `json:"user_id"`
	CheckInDate  string `json:"check_in_date"`
	Priorities   string `json:"priorities,omitempty"`
	Location     string `json:"location,omitempty"`
	Status       string `json:"status"`
	CreatedAtS   int64  `json:"created_at_s"`
	UpdatedAtS   int64  `json:"updated_at_s"`
}

func checkInToPayload(checkIn activity.DailyCheckIn) checkInPayload {
	return checkInPayload{
		ID:           checkIn.ID,
		ConferenceID: checkIn.ConferenceID,
		UserID:       checkIn.UserID,
		CheckInDate:  checkIn.CheckInDate,
		Priorities:   checkIn.Priorities,
		Location:     checkIn.Location,
		Status:       string(checkIn.Status),
		CreatedAtS:   checkIn.CreatedAt.UTC().Unix(),
		UpdatedAtS:   checkIn.UpdatedAt.UTC().Unix(),
	}
}

func checkInsToPayloads(checkIns []activity.DailyCheckIn) []checkInPayload {
	payloads := make([]checkInPayload, 0, len(checkIns))
	for _, checkIn := range checkIns {
		payloads = append(payloads, checkInToPayload(checkIn))
	}
	return payloads
}

// handleListCheckIns serves today's check-ins from the feed mirror; the
// mirror only holds the current date, so historical dates read the store.
func (h *httpHandler) handleListCheckIns(c *gin.Context) {
	conferenceID := c.Param("id")
	date := c.Query("date")
	if date == "" || date == activity.DateOf(time.Now()) {
		feed, err := h.feeds.Feed(c.Request.Context(), conferenceID)
		if err != nil {
			h.logger.Error("check-in load failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check_in_load_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"check_ins": checkInsToPayloads(feed.TodayCheckIns())})
		return
	}

	checkIns, err := h.activity.LoadCheckIns(c.Request.Context(), conferenceID, date)
	if err != nil {
		h.logger.Error("check-in load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check_in_load_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"check_ins": checkInsToPayloads(checkIns)})
}

type checkInRequestPayload struct {
	ConferenceID string `json:"conference_id"`
	Priorities   string `json:"priorities"`
	Location     string `json:"location"`
	Status       string `json:"status"`
}

func (h *httpHandler) handleSubmitCheckIn(c *gin.Context) {
	var request checkInRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ConferenceID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	dayCheckIns, err := h.activity.SubmitCheckIn(c.Request.Context(), activity.DailyCheckIn{
		ConferenceID: request.ConferenceID,
		UserID:       c.GetString(userIDContextKey),
		Priorities:   request.Priorities,
		Location:     request.Location,
		Status:       activity.CheckInStatus(request.Status),
	})
	if err != nil {
		var serviceErr *activity.ServiceError
		if errors.As(err, &serviceErr) && strings.Contains(serviceErr.Code(), "invalid_") {
			c.JSON(http.StatusBadRequest, gin.H{"error": serviceErr.Code()})
			return
		}
		h.logger.Error("check-in submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check_in_submit_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"check_ins": checkInsToPayloads(dayCheckIns)})
}

type contactPayload struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conference_id"`
	CapturedBy   string `json:"captured_by"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Company      string `json:"company,omitempty"`
	Title        string `json:"title,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAtS   int64  `json:"created_at_s"`
}

func contactToPayload(contact contacts.Contact) contactPayload {
	return contactPayload{
		ID:           contact.ID,
		ConferenceID: contact.ConferenceID,
		CapturedBy:   contact.CapturedBy,
		FirstName:    contact.FirstName,
		LastName:     contact.LastName,
		Email:        contact.Email,
		Phone:        contact.Phone,
		Company:      contact.Company,
		Title:        contact.Title,
		LinkedInURL:  contact.LinkedInURL,
		Notes:        contact.Notes,
		CreatedAtS:   contact.CreatedAt.UTC().Unix(),
	}
}

type contactRequestPayload struct {
	ConferenceID string `json:"conference_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Company      string `json:"company"`
	Title        string `json:"title"`
	LinkedInURL  string `json:"linkedin_url"`
	Notes        string `json:"notes"`
}

func (h *httpHandler) handleCaptureContact(c *gin.Context) {
	var request contactRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	teamID, err := h.team.ConferenceTeam(c.Request.Context(), request.ConferenceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_conference"})
		return
	}

	captured, err := h.contacts.Capture(c.Request.Context(), contacts.Contact{
		ConferenceID: request.ConferenceID,
		CapturedBy:   c.GetString(userIDContextKey),
		FirstName:    request.FirstName,
		LastName:     request.LastName,
		Email:        request.Email,
		Phone:        request.Phone,
		Company:      request.Company,
		Title:        request.Title,
		LinkedInURL:  request.LinkedInURL,
		Notes:        request.Notes,
	}, teamID)
	if errors.Is(err, contacts.ErrInvalidEmail) || errors.Is(err, contacts.ErrInvalidLinkedInURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("contact capture failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "contact_capture_failed"})
		return
	}
	c.JSON(http.StatusCreated, contactToPayload(captured))
}

func (h *httpHandler) handleGetContact(c *gin.Context) {
	contact, err := h.contacts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, contacts.ErrContactNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("contact lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "contact_lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, contactToPayload(contact))
}

func (h *httpHandler) handleListContacts(c *gin.Context) {
	captured, err := h.contacts.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("contact list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "contact_list_failed"})
		return
	}
	payloads := make([]contactPayload, 0, len(captured))
	for _, contact := range captured {
		payloads = append(payloads, contactToPayload(contact))
	}
	c.JSON(http.StatusOK, gin.H{"contacts": payloads})
}

type attendRequestPayload struct {
	ConferenceID string `json:"conference_id"`
	SessionTitle string `json:"session_title"`
}

type attendancePayload struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conference_id"`
	UserID       string `json:"user_id"`
	SessionTitle string `json:"session_title"`
	AttendedAtS  int64  `json:"attended_at_s"`
}

func (h *httpHandler) handleAttendSession(c *gin.Context) {
	var request attendRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ConferenceID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	teamID, err := h.team.ConferenceTeam(c.Request.Context(), request.ConferenceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_conference"})
		return
	}

	attendance, err := h.contacts.Attend(c.Request.Context(), contacts.SessionAttendance{
		ConferenceID: request.ConferenceID,
		UserID:       c.GetString(userIDContextKey),
		SessionTitle: request.SessionTitle,
	}, teamID)
	if err != nil {
		h.logger.Error("session attendance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_attend_failed"})
		return
	}
	c.JSON(http.StatusCreated, attendancePayload{
		ID:           attendance.ID,
		ConferenceID: attendance.ConferenceID,
		UserID:       attendance.UserID,
		SessionTitle: attendance.SessionTitle,
		AttendedAtS:  attendance.AttendedAt.UTC().Unix(),
	})
}

type postRequestPayload struct {
	ConferenceID  string `json:"conference_id"`
	Channel       string `json:"channel"`
	Content       string `json:"content"`
	ScheduledForS int64  `json:"scheduled_for_s"`
}

type postPayload struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conference_id"`
	AuthorID     string `json:"author_id"`
	Channel      string `json:"channel"`
	Content      string `json:"content"`
	Status       string `json:"status"`
	PublishedAtS int64  `json:"published_at_s,omitempty"`
	RequiredByS  int64  `json:"required_by_s,omitempty"`
}

func postToPayload(post posts.Post) postPayload {
	payload := postPayload{
		ID:           post.ID,
		ConferenceID: post.ConferenceID,
		AuthorID:     post.AuthorID,
		Channel:      post.Channel,
		Content:      post.Content,
		Status:       string(post.Status),
	}
	if post.PublishedAt != nil {
		payload.PublishedAtS = post.PublishedAt.UTC().Unix()
	}
	if post.RequiredBy != nil {
		payload.RequiredByS = post.RequiredBy.UTC().Unix()
	}
	return payload
}

func (h *httpHandler) handleSchedulePost(c *gin.Context) {
	var request postRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	post := posts.Post{
		ConferenceID: request.ConferenceID,
		AuthorID:     c.GetString(userIDContextKey),
		Channel:      request.Channel,
		Content:      request.Content,
	}
	if request.ScheduledForS > 0 {
		scheduledFor := time.Unix(request.ScheduledForS, 0).UTC()
		post.ScheduledFor = &scheduledFor
	}

	scheduled, err := h.posts.Schedule(c.Request.Context(), post)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post_schedule_failed"})
		return
	}
	c.JSON(http.StatusCreated, postToPayload(scheduled))
}

func (h *httpHandler) handlePublishPost(c *gin.Context) {
	postID := c.Param("id")
	teamID := h.teamForPost(c, postID)

	post, err := h.posts.Publish(c.Request.Context(), postID, teamID)
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if errors.Is(err, posts.ErrAlreadyPublished) {
		c.JSON(http.StatusConflict, gin.H{"error": "post_already_published"})
		return
	}
	if err != nil {
		h.logger.Error("post publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_publish_failed"})
		return
	}
	c.JSON(http.StatusOK, postToPayload(post))
}

type engageRequestPayload struct {
	EngagementType string `json:"engagement_type"`
}

type engagementPayload struct {
	ID             string `json:"id"`
	PostID         string `json:"post_id"`
	UserID         string `json:"user_id"`
	EngagementType string `json:"engagement_type"`
	CreatedAtS     int64  `json:"created_at_s"`
}

func (h *httpHandler) handleEngagePost(c *gin.Context) {
	var request engageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	postID := c.Param("id")
	teamID := h.teamForPost(c, postID)

	engagement, err := h.posts.Engage(
		c.Request.Context(),
		postID,
		c.GetString(userIDContextKey),
		teamID,
		posts.EngagementType(request.EngagementType),
	)
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if errors.Is(err, posts.ErrNotPublished) {
		c.JSON(http.StatusConflict, gin.H{"error": "post_not_published"})
		return
	}
	if err != nil {
		h.logger.Error("post engage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_engage_failed"})
		return
	}
	c.JSON(http.StatusOK, engagementPayload{
		ID:             engagement.ID,
		PostID:         engagement.PostID,
		UserID:         engagement.UserID,
		EngagementType: string(engagement.EngagementType),
		CreatedAtS:     engagement.CreatedAt.UTC().Unix(),
	})
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	published, err := h.posts.ListPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("post list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_list_failed"})
		return
	}
	payloads := make([]postPayload, 0, len(published))
	for _, post := range published {
		payloads = append(payloads, postToPayload(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": payloads})
}

type taskPayload struct {
	PostID      string `json:"post_id"`
	AuthorID    string `json:"author_id"`
	CommenterID string `json:"commenter_id"`
	RequiredByS int64  `json:"required_by_s"`
	RemainingS  int64  `json:"remaining_s"`
}

func tasksToPayloads(list []tasks.Task) []taskPayload {
	payloads := make([]taskPayload, 0, len(list))
	for _, task := range list {
		payloads = append(payloads, taskPayload{
			PostID:      task.Post.ID,
			AuthorID:    task.Post.AuthorID,
			CommenterID: task.CommenterID,
			RequiredByS: task.RequiredBy.UTC().Unix(),
			RemainingS:  int64(task.Remaining.Seconds()),
		})
	}
	return payloads
}

// handleListTasks derives the pending cross-pollination tasks for the
// caller. Tasks are a view over posts and engagements, recomputed on every
// request and never stored.
func (h *httpHandler) handleListTasks(c *gin.Context) {
	conferenceID := c.Param("id")
	viewerID := c.GetString(userIDContextKey)

	teamID, err := h.team.ConferenceTeam(c.Request.Context(), conferenceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_conference"})
		return
	}
	members, err := h.team.Members(c.Request.Context(), teamID)
	if err != nil {
		h.logger.Error("member list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task_derive_failed"})
		return
	}
	published, err := h.posts.ListPublished(c.Request.Context(), conferenceID)
	if err != nil {
		h.logger.Error("post list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task_derive_failed"})
		return
	}
	engagements, err := h.posts.ListEngagements(c.Request.Context(), conferenceID)
	if err != nil {
		h.logger.Error("engagement list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task_derive_failed"})
		return
	}

	now := time.Now()
	set := tasks.Derive(published, engagements, members, viewerID, now, h.taskConfig)
	h.planReminders(viewerID, set, now)
	c.JSON(http.StatusOK, gin.H{
		"all":    tasksToPayloads(set.All),
		"urgent": tasksToPayloads(set.Urgent),
		"mine":   tasksToPayloads(set.Mine),
	})
}

// planReminders reconciles the viewer's scheduled push reminders against
// the freshly derived task set. Each viewer gets one planner for the life
// of the process.
func (h *httpHandler) planReminders(viewerID string, set tasks.TaskSet, now time.Time) {
	if h.scheduler == nil {
		return
	}
	h.remindersMu.Lock()
	planner, ok := h.reminders[viewerID]
	if !ok {
		planner = tasks.NewReminderPlanner(h.scheduler, 0)
		h.reminders[viewerID] = planner
	}
	h.remindersMu.Unlock()
	planner.Plan(set, now)
}

func (h *httpHandler) handleGenerateFollowup(c *gin.Context) {
	if h.followup == nil {
		c.JSON(http.StatusOK, followup.Response{Success: false, Error: "followup generation not configured"})
		return
	}
	var request followup.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	request.UserID = c.GetString(userIDContextKey)
	if request.UserName == "" {
		request.UserName = h.users.DisplayName(request.UserID)
	}
	c.JSON(http.StatusOK, h.followup.Generate(c.Request.Context(), request))
}

func (h *httpHandler) handleScanBadge(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusOK, ocr.ScanResponse{Success: true, OCRAvailable: false})
		return
	}
	var request ocr.ScanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	c.JSON(http.StatusOK, h.scanner.Scan(c.Request.Context(), request))
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// expiry is routine; anything else deserves attention.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) teamForPost(c *gin.Context, postID string) string {
	post, err := h.posts.Get(c.Request.Context(), postID)
	if err != nil {
		return ""
	}
	teamID, err := h.team.ConferenceTeam(c.Request.Context(), post.ConferenceID)
	if err != nil {
		return ""
	}
	return teamID
}
