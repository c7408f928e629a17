package delivery

import (
	"net/http"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	useCase domain.AuthUseCase
	log     *logrus.Logger
}

func NewAuthHandler(uc domain.AuthUseCase, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{useCase: uc, log: logger}
}

func (h *AuthHandler) RegisterRoutes(router gin.IRouter, admin gin.HandlerFunc) {
	group := router.Group("/admin")
	{
		group.POST("/login", h.Login)
		group.POST("/logout", admin, h.Logout)
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.log, &req) {
		return
	}

	res, err := h.useCase.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.log, err, "log in")
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{
		"token":     res.Token,
		"expiresIn": int64(res.ExpiresIn.Seconds()),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.useCase.Logout(c.Request.Context(), middleware.AdminUsername(c))
	SuccessResponse(c, http.StatusOK, "Logged out successfully", nil)
}
