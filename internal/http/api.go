package http

import (
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"clockledger/internal/storage"
)

// UpdateSink receives Telegram updates delivered over the webhook route.
type UpdateSink func(update tgbotapi.Update)

// Handler wires the evidence endpoints and the optional Telegram webhook.
type Handler struct {
	storage       storage.Service
	signer        *LinkSigner
	webhookSecret string
	sink          UpdateSink
	log           *logrus.Logger
}

func NewHandler(store storage.Service, signer *LinkSigner, log *logrus.Logger) *Handler {
	return &Handler{storage: store, signer: signer, log: log}
}

// EnableWebhook registers the Telegram webhook route on the next
// RegisterRoutes call. secret is compared against Telegram's secret token
// header on every delivery.
func (h *Handler) EnableWebhook(secret string, sink UpdateSink) {
	h.webhookSecret = secret
	h.sink = sink
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	router.GET("/evidence/:token", h.getEvidence)
	if h.sink != nil {
		router.POST("/telegram/webhook", h.webhook)
	}
}

// EvidenceURL builds a signed link for the given evidence key.
func (h *Handler) EvidenceURL(baseURL, key string) (string, error) {
	token, err := h.signer.Sign(key)
	if err != nil {
		return "", err
	}
	return baseURL + "/evidence/" + token, nil
}

func (h *Handler) getEvidence(c *gin.Context) {
	key, err := h.signer.Verify(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired link"})
		return
	}

	body, contentType, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		h.log.WithField("key", key).Warnf("fetch evidence: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
		return
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read evidence"})
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) webhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.webhookSecret {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sink(update)
	c.Status(http.StatusOK)
}
