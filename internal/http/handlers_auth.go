package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"smartledger/internal/auth"
	"smartledger/internal/storage"
)

const minPasswordLength = 8

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil || s.sessions == nil {
		UnavailableError("계정 기능이 설정되지 않았습니다").Write(w)
		return
	}

	email := strings.ToLower(sanitizeInput(r.FormValue("email")))
	password := r.FormValue("password")

	if email == "" || !strings.Contains(email, "@") {
		UnprocessableEntityError("이메일 주소가 올바르지 않습니다").Write(w)
		return
	}
	if len(password) < minPasswordLength {
		UnprocessableEntityError("비밀번호는 8자 이상이어야 합니다").Write(w)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		InternalServerError("가입 처리에 실패했습니다").Write(w)
		return
	}

	userID, err := s.repo.CreateUser(r.Context(), email, hash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			ConflictError("이미 가입된 이메일입니다").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "User create failed", "error", err)
		InternalServerError("가입 처리에 실패했습니다").Write(w)
		return
	}

	s.issueSession(w, r, userID)
	slog.InfoContext(r.Context(), "User registered", "user_id", userID)
	s.toasts.Success(r.Context(), "가입을 환영합니다")

	NewHTMXResponse().Trigger("auth:changed", struct{}{}).Header("HX-Refresh", "true").Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil || s.sessions == nil {
		UnavailableError("계정 기능이 설정되지 않았습니다").Write(w)
		return
	}

	email := strings.ToLower(sanitizeInput(r.FormValue("email")))
	password := r.FormValue("password")

	user, err := s.repo.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			UnauthorizedError("이메일 또는 비밀번호가 올바르지 않습니다").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "User lookup failed", "error", err)
		InternalServerError("로그인에 실패했습니다").Write(w)
		return
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		slog.WarnContext(r.Context(), "Login rejected", "user_id", user.ID)
		UnauthorizedError("이메일 또는 비밀번호가 올바르지 않습니다").Write(w)
		return
	}

	s.issueSession(w, r, user.ID)
	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)

	NewHTMXResponse().Trigger("auth:changed", struct{}{}).Header("HX-Refresh", "true").Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		http.SetCookie(w, s.sessions.ClearCookie())
	}
	NewHTMXResponse().Trigger("auth:changed", struct{}{}).Header("HX-Refresh", "true").Write(w)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, userID int64) {
	token, err := s.sessions.Issue(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session issue failed", "error", err, "user_id", userID)
		return
	}
	http.SetCookie(w, s.sessions.Cookie(token))
}
