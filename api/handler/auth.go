package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/api/transport"
	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/httpcontext"
	authUC "github.com/fastygo/tasktracker/usecase/auth"
)

const defaultMaxImageBytes = 10_000_000

type AuthHandler struct {
	baseHandler
	uc            *authUC.UseCase
	maxImageBytes int64
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger, maxImageBytes int64) *AuthHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &AuthHandler{
		baseHandler:   newBaseHandler(adapter, logger),
		uc:            uc,
		maxImageBytes: maxImageBytes,
	}
}

// @Summary Register a user
// @Tags auth
// @Accept json,mpfd
// @Router /api/v1/auth/sign-up [post]
func (h *AuthHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var (
		req   transport.SignUpRequest
		image []byte
	)
	if bytes.HasPrefix(ctx.Request.Header.ContentType(), []byte("multipart/form-data")) {
		var err error
		req, image, err = h.readMultipartSignUp(ctx)
		if err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), err.Error(), nil))
			return
		}
		if err := transport.Validate(req); err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), err.Error(), nil))
			return
		}
	} else if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.SignUp(stdCtx, authUC.SignUpInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		Image:     image,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.TokenResponse{AccessToken: token})
}

// @Summary Exchange credentials for an access token
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Login(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.TokenResponse{AccessToken: token})
}

// @Summary Extend the current session
// @Tags auth
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Refresh(stdCtx, caller)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.TokenResponse{AccessToken: token})
}

// @Summary Revoke the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, caller); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func (h *AuthHandler) readMultipartSignUp(ctx *fasthttp.RequestCtx) (transport.SignUpRequest, []byte, error) {
	var req transport.SignUpRequest
	form, err := ctx.MultipartForm()
	if err != nil {
		return req, nil, errors.New("invalid multipart payload")
	}
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	req = transport.SignUpRequest{
		FirstName: value("firstName"),
		LastName:  value("lastName"),
		Email:     value("email"),
		Password:  value("password"),
		Role:      value("role"),
	}

	files := form.File["image"]
	if len(files) == 0 {
		return req, nil, nil
	}
	header := files[0]
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return req, nil, errors.New("image must be an image file")
	}
	if header.Size > h.maxImageBytes {
		return req, nil, fmt.Errorf("image exceeds %d bytes", h.maxImageBytes)
	}
	file, err := header.Open()
	if err != nil {
		return req, nil, errors.New("unreadable image")
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return req, nil, errors.New("unreadable image")
	}
	return req, image, nil
}
