package server

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/db"
	"cleanstreet/backend/email"
	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// sentence capitalises an error message for display.
func sentence(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

func (s *Server) issue(c *gin.Context, id string, role auth.Role) (string, bool) {
	token, err := s.tokens.Issue(id, role)
	if err != nil {
		failWith(c, "issueToken", err)
		return "", false
	}
	return token, true
}

func (s *Server) RegisterUser(c *gin.Context) {
	var args api.RegisterUserArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "registerUser", err)
		return
	}
	hash, err := auth.HashPassword(args.Password)
	if err != nil {
		failWith(c, "registerUser", err)
		return
	}
	user, err := db.CreateUser(c.Request.Context(), s.db, &db.NewUser{
		Name:         strings.TrimSpace(args.Name),
		Username:     strings.TrimSpace(args.Username),
		Email:        strings.ToLower(strings.TrimSpace(args.Email)),
		PasswordHash: hash,
		State:        args.State,
		City:         args.City,
	})
	if errors.Is(err, db.ErrEmailTaken) {
		fail(c, http.StatusBadRequest, "User already exists with this email")
		return
	}
	if err != nil {
		failWith(c, "registerUser", err)
		return
	}
	s.cache.Invalidate(c.Request.Context())
	token, issued := s.issue(c, user.Id, auth.RoleUser)
	if !issued {
		return
	}
	respond(c, http.StatusCreated, "", gin.H{"token": token, "user": user})
}

func (s *Server) LoginUser(c *gin.Context) {
	var args api.LoginArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "loginUser", err)
		return
	}
	user, hash, err := db.UserCredentials(c.Request.Context(), s.db, strings.ToLower(strings.TrimSpace(args.Email)))
	if errors.Is(err, db.ErrUserNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		failWith(c, "loginUser", err)
		return
	}
	if user.IsBlocked {
		log.Infof("Blocked user %s tried to log in", user.Id)
		fail(c, http.StatusForbidden, "Your account has been blocked. Please contact administrator.")
		return
	}
	if !auth.CheckPassword(hash, args.Password) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, issued := s.issue(c, user.Id, auth.RoleUser)
	if !issued {
		return
	}
	ok(c, gin.H{"token": token, "user": user})
}

func (s *Server) CurrentUser(c *gin.Context) {
	user, err := db.GetUser(c.Request.Context(), s.db, caller(c).Id)
	if err != nil {
		failWith(c, "currentUser", err)
		return
	}
	ok(c, gin.H{"user": user})
}

func (s *Server) RegisterVolunteer(c *gin.Context) {
	var args api.RegisterVolunteerArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		fail(c, http.StatusBadRequest, "Please provide name, email, and password")
		return
	}
	v, created := s.createVolunteer(c, &args, lifecycle.VolunteerPending, "")
	if !created {
		return
	}
	respond(c, http.StatusCreated, "Volunteer registration successful. Waiting for admin approval.", gin.H{
		"volunteer": gin.H{"id": v.Id, "name": v.Name, "email": v.Email, "status": v.Status},
	})
}

func (s *Server) createVolunteer(c *gin.Context, args *api.RegisterVolunteerArgs, status lifecycle.VolunteerStatus, approvedBy string) (*api.Volunteer, bool) {
	hash, err := auth.HashPassword(args.Password)
	if err != nil {
		failWith(c, "createVolunteer", err)
		return nil, false
	}
	v, err := db.CreateVolunteer(c.Request.Context(), s.db, &db.NewVolunteer{
		Name:         strings.TrimSpace(args.Name),
		Email:        strings.ToLower(strings.TrimSpace(args.Email)),
		PasswordHash: hash,
		Phone:        args.Phone,
		Address:      args.Address,
		Status:       status,
		ApprovedBy:   approvedBy,
	})
	if errors.Is(err, db.ErrEmailTaken) {
		fail(c, http.StatusBadRequest, "Volunteer with this email already exists")
		return nil, false
	}
	if err != nil {
		failWith(c, "createVolunteer", err)
		return nil, false
	}
	s.cache.Invalidate(c.Request.Context())
	return v, true
}

// LoginVolunteer admits approved volunteers only.
func (s *Server) LoginVolunteer(c *gin.Context) {
	var args api.LoginArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		fail(c, http.StatusBadRequest, "Please provide email and password")
		return
	}
	v, hash, err := db.VolunteerCredentials(c.Request.Context(), s.db, strings.ToLower(strings.TrimSpace(args.Email)))
	if errors.Is(err, db.ErrVolunteerNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		failWith(c, "loginVolunteer", err)
		return
	}
	if err := lifecycle.CanWork(v.Status); err != nil {
		fail(c, http.StatusUnauthorized, sentence(err))
		return
	}
	if !auth.CheckPassword(hash, args.Password) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, issued := s.issue(c, v.Id, auth.RoleVolunteer)
	if !issued {
		return
	}
	ok(c, gin.H{
		"token":     token,
		"volunteer": gin.H{"id": v.Id, "name": v.Name, "email": v.Email, "status": v.Status},
	})
}

func (s *Server) CurrentVolunteer(c *gin.Context) {
	v, err := db.GetVolunteer(c.Request.Context(), s.db, caller(c).Id)
	if err != nil {
		failWith(c, "currentVolunteer", err)
		return
	}
	ok(c, gin.H{"volunteer": v})
}

func (s *Server) LoginAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	var args api.LoginArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		fail(c, http.StatusBadRequest, "Please provide email and password")
		return
	}
	admin, hash, err := db.AdminCredentials(ctx, s.db, strings.ToLower(strings.TrimSpace(args.Email)))
	if errors.Is(err, db.ErrAdminNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		failWith(c, "loginAdmin", err)
		return
	}
	if !admin.IsActive {
		fail(c, http.StatusUnauthorized, "Your account has been deactivated")
		return
	}
	if !auth.CheckPassword(hash, args.Password) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := db.TouchAdminLogin(ctx, s.db, admin.Id); err != nil {
		log.Warnf("Failed to record login of admin %s: %v", admin.Id, err)
	}
	now := time.Now().UTC()
	admin.LastLogin = &now

	token, issued := s.issue(c, admin.Id, auth.RoleAdmin)
	if !issued {
		return
	}
	ok(c, gin.H{"token": token, "admin": admin})
}

// RegisterAdmin creates another admin account. Only super admins may do this.
func (s *Server) RegisterAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	current, err := db.GetAdmin(ctx, s.db, caller(c).Id)
	if err != nil {
		failWith(c, "registerAdmin", err)
		return
	}
	if current.Role != db.AdminRoleSuper {
		fail(c, http.StatusForbidden, "Only super admins can register new admins")
		return
	}

	var args api.RegisterAdminArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "registerAdmin", err)
		return
	}
	if args.Role == "" {
		args.Role = db.AdminRoleAdmin
	}
	if args.Role != db.AdminRoleAdmin && args.Role != db.AdminRoleSuper {
		fail(c, http.StatusBadRequest, "Role must be admin or super_admin")
		return
	}
	hash, err := auth.HashPassword(args.Password)
	if err != nil {
		failWith(c, "registerAdmin", err)
		return
	}
	admin, err := db.CreateAdmin(ctx, s.db, strings.TrimSpace(args.Name), strings.ToLower(strings.TrimSpace(args.Email)), hash, args.Role)
	if errors.Is(err, db.ErrEmailTaken) {
		fail(c, http.StatusBadRequest, "Admin with this email already exists")
		return
	}
	if err != nil {
		failWith(c, "registerAdmin", err)
		return
	}
	log.Infof("Admin %s registered %s admin %s", current.Id, admin.Role, admin.Id)
	respond(c, http.StatusCreated, "Admin registered successfully", gin.H{"admin": admin})
}

func (s *Server) CurrentAdmin(c *gin.Context) {
	admin, err := db.GetAdmin(c.Request.Context(), s.db, caller(c).Id)
	if err != nil {
		failWith(c, "currentAdmin", err)
		return
	}
	ok(c, gin.H{"admin": admin})
}

func (s *Server) ListAdmins(c *gin.Context) {
	admins, err := db.ListAdmins(c.Request.Context(), s.db)
	if err != nil {
		failWith(c, "listAdmins", err)
		return
	}
	ok(c, gin.H{"count": len(admins), "admins": admins})
}

func (s *Server) ToggleAdminActive(c *gin.Context) {
	admin, err := db.ToggleAdminActive(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		failWith(c, "toggleAdminActive", err)
		return
	}
	message := "Admin deactivated successfully"
	if admin.IsActive {
		message = "Admin activated successfully"
	}
	respond(c, http.StatusOK, message, gin.H{"admin": admin})
}

// resetLink returns the front-end page a reset email points to.
func (s *Server) resetLink(acct db.Account, token string) (subjectPrefix, link string) {
	switch acct {
	case db.AccountAdmin:
		return "Admin", s.cfg.AdminURL + "/admin/reset-password/" + token
	case db.AccountVolunteer:
		return "Volunteer", s.cfg.AdminURL + "/volunteer/reset-password/" + token
	}
	return "", s.cfg.ClientURL + "/reset-password/" + token
}

// forgotPassword stores a reset token and mails the link. If the email cannot
// be sent the token is withdrawn and the request fails.
func (s *Server) forgotPassword(acct db.Account) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var args api.EmailArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			fail(c, http.StatusBadRequest, "Please provide email")
			return
		}
		addr := strings.ToLower(strings.TrimSpace(args.Email))

		plain, digest, err := auth.NewResetToken()
		if err != nil {
			failWith(c, "forgotPassword", err)
			return
		}
		id, name, err := db.SetResetToken(ctx, s.db, acct, addr, digest, time.Now().Add(auth.ResetTokenTTL))
		if errors.Is(err, db.ErrUserNotFound) || errors.Is(err, db.ErrVolunteerNotFound) || errors.Is(err, db.ErrAdminNotFound) {
			fail(c, http.StatusNotFound, "No account found with that email")
			return
		}
		if err != nil {
			failWith(c, "forgotPassword", err)
			return
		}

		prefix, link := s.resetLink(acct, plain)
		err = email.ErrNotConfigured
		if s.mailer != nil {
			err = s.mailer.Send(ctx, email.PasswordResetMessage(prefix, name, addr, link, auth.ResetTokenTTL))
		}
		if err != nil {
			log.WithField("account", string(acct)).Errorf("Failed to send reset email to %s: %v", id, err)
			if err := db.ClearResetToken(ctx, s.db, acct, id); err != nil {
				log.Errorf("Failed to clear reset token of %s: %v", id, err)
			}
			fail(c, http.StatusInternalServerError, "Email could not be sent")
			return
		}
		respond(c, http.StatusOK, "Password reset email sent", nil)
	}
}

func (s *Server) resetPassword(acct db.Account) gin.HandlerFunc {
	return func(c *gin.Context) {
		var args api.ResetPasswordArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			fail(c, http.StatusBadRequest, "Please provide a password of at least 6 characters")
			return
		}
		hash, err := auth.HashPassword(args.Password)
		if err != nil {
			failWith(c, "resetPassword", err)
			return
		}
		id, err := db.ResetPassword(c.Request.Context(), s.db, acct, auth.HashResetToken(c.Param("token")), hash)
		if err != nil {
			failWith(c, "resetPassword", err)
			return
		}
		log.WithField("account", string(acct)).Infof("Password reset for %s", id)
		respond(c, http.StatusOK, "Password reset successful", nil)
	}
}
