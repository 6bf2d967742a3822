package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/cache"
	"cleanstreet/backend/config"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/storage"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var complaintColumns = []string{
	"id", "user_id", "assigned_to", "title", "description", "address", "lng", "lat",
	"upvotes", "downvotes", "status", "priority", "created_at", "updated_at",
	"reporter_name", "reporter_email", "v_id", "v_name", "v_email", "v_phone",
}

type fixture struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	tokens *auth.Tokens
	router *gin.Engine
}

func newFixture(t *testing.T, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	return newFixtureWith(t, Deps{}, tweak...)
}

// newFixtureWith builds a fixture around d, filling in the database, tokens
// and storage.
func newFixtureWith(t *testing.T, d Deps, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		MaxPhotos:      5,
		MaxPhotoBytes:  5 << 20,
		ClientURL:      "http://localhost:5173",
		AdminURL:       "http://localhost:5174",
	}
	for _, f := range tweak {
		f(cfg)
	}
	tokens := auth.NewTokens("test-secret", time.Hour)
	d.DB, d.Tokens, d.Storage = conn, tokens, store
	srv := New(cfg, d)
	return &fixture{db: conn, mock: mock, tokens: tokens, router: srv.Router()}
}

func (f *fixture) token(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	token, err := f.tokens.Issue(id, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *fixture) expectActiveUser(id string) {
	f.mock.ExpectQuery("SELECT is_blocked FROM users").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"is_blocked"}).AddRow(false))
}

func (f *fixture) expectActiveAdmin(id string) {
	f.mock.ExpectQuery("SELECT is_active FROM admins").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
}

func (f *fixture) expectApprovedVolunteer(id string) {
	f.mock.ExpectQuery("SELECT status FROM volunteers").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
}

func (f *fixture) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func jsonRequest(method, path, auth string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func TestCreateComplaintWithoutCoordinates(t *testing.T) {
	f := newFixture(t)
	f.expectActiveUser("u1")
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO complaints").
		WithArgs(sqlmock.AnyArg(), "u1", "Pothole", "Large pothole on Main St", "123 Main St", "POINT(0 0)", "received", "medium").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Pothole"))
	require.NoError(t, mw.WriteField("description", "Large pothole on Main St"))
	require.NoError(t, mw.WriteField("address", "123 Main St"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/complaints", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", f.token(t, "u1", auth.RoleUser))

	w, body := f.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])

	complaint := body["complaint"].(map[string]any)
	assert.Equal(t, "received", complaint["status"])
	assert.Equal(t, "medium", complaint["priority"])
	coords := complaint["location_coords"].(map[string]any)["coordinates"].([]any)
	assert.Equal(t, []any{0.0, 0.0}, coords)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

type photoPart struct {
	filename    string
	contentType string
	size        int
}

func complaintUpload(t *testing.T, token string, photos ...photoPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Pothole"))
	require.NoError(t, mw.WriteField("description", "Large pothole on Main St"))
	require.NoError(t, mw.WriteField("address", "123 Main St"))
	for _, p := range photos {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename="%s"`, p.filename))
		h.Set("Content-Type", p.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(append([]byte("GIF89a"), make([]byte, p.size)...))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/complaints", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", token)
	return req
}

func TestCreateComplaintRejectsBadUploads(t *testing.T) {
	gif := photoPart{"pothole.gif", "image/gif", 16}
	cases := []struct {
		name    string
		photos  []photoPart
		message string
	}{
		{"too many", []photoPart{gif, gif, gif, gif, gif, gif}, "At most 5 photos are allowed"},
		{"extension", []photoPart{{"notes.txt", "image/png", 16}}, "Only image files are allowed (jpeg, jpg, png, gif, webp)"},
		{"mime", []photoPart{{"pothole.jpg", "text/plain", 16}}, "Only image files are allowed (jpeg, jpg, png, gif, webp)"},
		{"size", []photoPart{{"big.gif", "image/gif", 1 << 20}}, "Photo big.gif exceeds the 1 MB limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(cfg *config.Config) { cfg.MaxPhotoBytes = 1 << 20 })
			f.expectActiveUser("u1")

			w, body := f.do(complaintUpload(t, f.token(t, "u1", auth.RoleUser), tc.photos...))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.message, body["message"])
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestCreateComplaintMissingFields(t *testing.T) {
	f := newFixture(t)
	f.expectActiveUser("u1")

	req := jsonRequest(http.MethodPost, "/api/complaints", f.token(t, "u1", auth.RoleUser), map[string]string{"title": "Pothole"})
	w, body := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide title, description, and address", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAdminResolvesComplaint(t *testing.T) {
	f := newFixture(t)
	f.expectActiveAdmin("a1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT status, assigned_to FROM complaints").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_to"}).AddRow("received", nil))
	f.mock.ExpectExec("UPDATE complaints SET status").WithArgs("resolved", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	now := time.Now()
	f.mock.ExpectQuery("FROM complaints c").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(complaintColumns).AddRow(
			"c1", "u1", nil, "Pothole", "Large pothole", "123 Main St", 0.0, 0.0,
			0, 0, "resolved", "medium", now, now,
			"Jane", "jane@example.com", nil, "", "", ""))
	f.mock.ExpectQuery("SELECT complaint_id, url FROM complaint_photos").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id", "url"}))

	req := jsonRequest(http.MethodPut, "/api/complaints/c1/status", f.token(t, "a1", auth.RoleAdmin), map[string]string{"status": "resolved"})
	w, body := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "resolved", body["complaint"].(map[string]any)["status"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVolunteerCannotReject(t *testing.T) {
	f := newFixture(t)
	f.expectApprovedVolunteer("v1")

	req := jsonRequest(http.MethodPut, "/api/volunteer/complaints/c1/status", f.token(t, "v1", auth.RoleVolunteer), map[string]string{"status": "rejected"})
	w, body := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid status. Allowed: assigned, in_review, resolved", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVolunteerUpdatesUnassignedComplaint(t *testing.T) {
	f := newFixture(t)
	f.expectApprovedVolunteer("v1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT status, assigned_to FROM complaints").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_to"}).AddRow("assigned", "v2"))
	f.mock.ExpectRollback()

	req := jsonRequest(http.MethodPut, "/api/volunteer/complaints/c1/status", f.token(t, "v1", auth.RoleVolunteer), map[string]string{"status": "resolved"})
	w, body := f.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Complaint not found or not assigned to you", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestInvalidVoteType(t *testing.T) {
	f := newFixture(t)
	f.expectActiveUser("u1")

	req := jsonRequest(http.MethodPost, "/api/votes/c1", f.token(t, "u1", auth.RoleUser), map[string]string{"vote_type": "sideways"})
	w, body := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `Invalid vote type. Must be "upvote" or "downvote"`, body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMissingToken(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(jsonRequest(http.MethodGet, "/api/complaints", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", body["message"])

	w, body = f.do(jsonRequest(http.MethodGet, "/api/complaints", "Bearer garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, token failed", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWrongRole(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(jsonRequest(http.MethodGet, "/api/admin/complaints", f.token(t, "u1", auth.RoleUser), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBlockedUserRejected(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT is_blocked FROM users").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"is_blocked"}).AddRow(true))

	w, body := f.do(jsonRequest(http.MethodGet, "/api/complaints", f.token(t, "u1", auth.RoleUser), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Your account is not active", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUnassignWhenNotAssigned(t *testing.T) {
	f := newFixture(t)
	f.expectActiveAdmin("a1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT assigned_to FROM complaints").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}).AddRow(nil))
	f.mock.ExpectRollback()

	w, body := f.do(jsonRequest(http.MethodPut, "/api/complaints/c1/unassign", f.token(t, "a1", auth.RoleAdmin), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Complaint is not assigned to any volunteer", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignToPendingVolunteer(t *testing.T) {
	f := newFixture(t)
	f.expectActiveAdmin("a1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT assigned_to FROM complaints").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}).AddRow(nil))
	f.mock.ExpectQuery("SELECT name, email, status FROM volunteers").WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "status"}).AddRow("Val", "val@example.com", "pending"))
	f.mock.ExpectRollback()

	req := jsonRequest(http.MethodPut, "/api/admin/complaints/c1/assign", f.token(t, "a1", auth.RoleAdmin), map[string]string{"volunteerId": "v1"})
	w, body := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Volunteer is not approved", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignRequiresVolunteer(t *testing.T) {
	f := newFixture(t)
	f.expectActiveAdmin("a1")

	w, body := f.do(jsonRequest(http.MethodPut, "/api/complaints/c1/assign", f.token(t, "a1", auth.RoleAdmin), map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide volunteer ID", body["message"])
}

func TestForgotPasswordWithoutMailer(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT id, name FROM users").WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("u1", "Jane"))
	f.mock.ExpectExec("UPDATE users SET reset_password_token").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE users SET reset_password_token = NULL").WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w, body := f.do(jsonRequest(http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "jane@example.com"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Email could not be sent", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	w, _ := f.do(jsonRequest(http.MethodPost, "/api/auth/login", "", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := f.do(jsonRequest(http.MethodPost, "/api/auth/login", "", map[string]string{}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want [2]float64
	}{
		{"empty", "", [2]float64{0, 0}},
		{"geojson", `{"type":"Point","coordinates":[-0.1276,51.5072]}`, [2]float64{-0.1276, 51.5072}},
		{"pair", `[13.4,52.5]`, [2]float64{13.4, 52.5}},
		{"quoted", `"{\"type\":\"Point\",\"coordinates\":[2.35,48.85]}"`, [2]float64{2.35, 48.85}},
		{"out of range", `[200,10]`, [2]float64{0, 0}},
		{"wrong arity", `[1,2,3]`, [2]float64{0, 0}},
		{"garbage", `not json`, [2]float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLocation([]byte(tt.raw))
			assert.Equal(t, "Point", got.Type)
			assert.Equal(t, tt.want, got.Coordinates)
		})
	}
}

type failingNotifier struct {
	sent []*notify.Notification
}

func (n *failingNotifier) Notify(_ context.Context, m *notify.Notification) error {
	n.sent = append(n.sent, m)
	return errors.New("broker unavailable")
}

func TestAssignSurvivesNotifierFailure(t *testing.T) {
	notifier := &failingNotifier{}
	f := newFixtureWith(t, Deps{Notifier: notifier})
	f.expectActiveAdmin("a1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT assigned_to FROM complaints").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"assigned_to"}).AddRow(nil))
	f.mock.ExpectQuery("SELECT name, email, status FROM volunteers").WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "status"}).AddRow("Val", "val@example.com", "approved"))
	f.mock.ExpectExec("UPDATE complaints SET assigned_to").WithArgs("v1", "assigned", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT IGNORE INTO volunteer_assignments").WithArgs("v1", "c1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	now := time.Now()
	f.mock.ExpectQuery("FROM complaints c").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(complaintColumns).AddRow(
			"c1", "u1", "v1", "Pothole", "Large pothole", "123 Main St", 0.0, 0.0,
			0, 0, "assigned", "medium", now, now,
			"Jane", "jane@example.com", "v1", "Val", "val@example.com", "555-0100"))
	f.mock.ExpectQuery("SELECT complaint_id, url FROM complaint_photos").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id", "url"}))

	req := jsonRequest(http.MethodPut, "/api/admin/complaints/c1/assign", f.token(t, "a1", auth.RoleAdmin), map[string]string{"volunteerId": "v1"})
	w, body := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "assigned", body["complaint"].(map[string]any)["status"])
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.KindComplaintAssigned, notifier.sent[0].Kind)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApproveSurvivesNotifierFailure(t *testing.T) {
	notifier := &failingNotifier{}
	f := newFixtureWith(t, Deps{Notifier: notifier})
	f.expectActiveAdmin("a1")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM volunteers WHERE id = (.+) FOR UPDATE").WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "address", "status", "approved_by", "approved_at", "created_at"}).
			AddRow("v1", "Val", "val@example.com", "", "", "pending", nil, nil, time.Now()))
	f.mock.ExpectExec("UPDATE volunteers SET status").WithArgs("approved", "a1", sqlmock.AnyArg(), "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	w, body := f.do(jsonRequest(http.MethodPut, "/api/admin/volunteers/v1/approve", f.token(t, "a1", auth.RoleAdmin), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Volunteer approved successfully", body["message"])
	assert.Equal(t, "approved", body["volunteer"].(map[string]any)["status"])
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.KindVolunteerApproved, notifier.sent[0].Kind)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func testStatsCache(t *testing.T) *cache.StatsCache {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.New(rdb, time.Minute)
}

func expectNewUser(mock sqlmock.Sqlmock, email string) *sqlmock.ExpectedExec {
	mock.ExpectQuery("SELECT COUNT(.+) FROM users WHERE email").WithArgs(email).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT(.+) FROM users WHERE username").WithArgs(email).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	return mock.ExpectExec("INSERT INTO users")
}

func TestRegisterUserRefreshesDashboard(t *testing.T) {
	stats := testStatsCache(t)
	ctx := context.Background()
	stats.Set(ctx, "dashboard", map[string]int{"users": 1})

	f := newFixtureWith(t, Deps{Cache: stats})
	expectNewUser(f.mock, "ann@example.com").WillReturnResult(sqlmock.NewResult(1, 1))

	w, body := f.do(jsonRequest(http.MethodPost, "/api/auth/register", "",
		map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret1"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, body["token"])

	var cached map[string]int
	assert.False(t, stats.Get(ctx, "dashboard", &cached))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterUserDuplicateInsert(t *testing.T) {
	f := newFixture(t)
	expectNewUser(f.mock, "ann@example.com").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@example.com' for key 'users.uniq_users_email'"})

	w, body := f.do(jsonRequest(http.MethodPost, "/api/auth/register", "",
		map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists with this email", body["message"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
