package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/server/services"
)

const maxBodyBytes = 1 << 20

const (
	operationRegister     = "register"
	operationLogin        = "login"
	operationAuthenticate = "authenticate"
)

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, operationRegister, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.metrics.observeOperation(operationRegister, outcomeValidation)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.auth.Register(r.Context(), services.RegisterInput{
		Email:       req.Email,
		DisplayName: req.Username,
		Secret:      req.Password,
	})
	if err != nil {
		s.fail(w, r, operationRegister, err)
		return
	}

	s.metrics.observeOperation(operationRegister, outcomeSuccess)
	s.logger.Info(r.Context(), "identity registered", "identity_id", res.Identity.ID)
	writeData(w, toAuthResponse(res))
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, operationLogin, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.metrics.observeOperation(operationLogin, outcomeValidation)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.auth.Login(r.Context(), services.LoginInput{Email: req.Email, Secret: req.Password})
	if err != nil {
		s.fail(w, r, operationLogin, err)
		return
	}

	s.metrics.observeOperation(operationLogin, outcomeSuccess)
	s.logger.Info(r.Context(), "identity logged in", "identity_id", res.Identity.ID)
	writeData(w, toAuthResponse(res))
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	payload, ok := payloadFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, common.ErrInvalidToken.Error())
		return
	}

	writeData(w, meResponse{
		UserID:    payload.SubjectID,
		Email:     payload.Email,
		ExpiresAt: payload.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.metrics.observeOperation(operation, outcomeValidation)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps a service error to a status and an envelope message:
//   - duplicate email and invalid credentials: 400 with their message.
//   - invalid token: 401.
//   - store and internal faults: 500 "internal error", cause logged only.
//
// Faults the caller cannot fix are 500 rather than 400, so clients and
// metrics can tell a broken server from a rejected request.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, common.ErrorDuplicateEmail):
		s.metrics.observeOperation(operation, outcomeDuplicateEmail)
		writeError(w, http.StatusBadRequest, common.ErrorDuplicateEmail.Error())
	case errors.Is(err, common.ErrorInvalidCredentials):
		s.metrics.observeOperation(operation, outcomeInvalidCredentials)
		writeError(w, http.StatusBadRequest, common.ErrorInvalidCredentials.Error())
	case errors.Is(err, common.ErrInvalidToken):
		s.metrics.observeOperation(operation, outcomeInvalidToken)
		writeError(w, http.StatusUnauthorized, common.ErrInvalidToken.Error())
	case errors.Is(err, common.ErrorStore):
		s.metrics.observeOperation(operation, outcomeStoreFailure)
		s.logger.Error(r.Context(), "store failure", "operation", operation, "error", err)
		writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	default:
		s.metrics.observeOperation(operation, outcomeInternal)
		s.logger.Error(r.Context(), "internal failure", "operation", operation, "error", err)
		writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		User: userResponse{
			ID:       res.Identity.ID,
			Email:    res.Identity.Email,
			Username: res.Identity.DisplayName,
		},
		Token: res.Token,
	}
}
