package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/covercompare/membergate/internal/auth"
	"github.com/covercompare/membergate/internal/gateway"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler exposes the lifecycle gateway over HTTP.
type Handler struct {
	Gateway *gateway.Gateway
	// Production hides backend diagnostics from error responses.
	Production bool
	// CheckOrigin guards the websocket handshake. Nil allows same-origin only.
	CheckOrigin func(r *http.Request) bool
}

var (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Register mounts every route under r, which is expected to run auth.Middleware.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/profile", h.GetProfile)
	r.GET("/profile/banner", h.Banner)

	admin := r.Group("/admin")
	{
		admin.POST("/membership/status", h.SetStatus)
		admin.POST("/membership/confirm-payment", h.ConfirmPayment)
		admin.GET("/profiles", h.ListProfiles)
		admin.POST("/filters", h.PublishFilter)
		admin.GET("/filters/stream", h.FilterStream)
	}
}

func (h *Handler) SetStatus(c *gin.Context) {
	var req gateway.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	res, err := h.Gateway.SetStatus(c.Request.Context(), auth.PrincipalFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req gateway.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	res, err := h.Gateway.ConfirmPayment(c.Request.Context(), auth.PrincipalFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.Gateway.GetProfile(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) Banner(c *gin.Context) {
	b, err := h.Gateway.Banner(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) ListProfiles(c *gin.Context) {
	profiles, err := h.Gateway.ListProfiles(c.Request.Context(), auth.PrincipalFrom(c), c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if profiles == nil {
		profiles = []schema.Profile{}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *Handler) PublishFilter(c *gin.Context) {
	var req schema.FilterChanged
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	res, err := h.Gateway.PublishFilter(c.Request.Context(), auth.PrincipalFrom(c), req.Filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// FilterStream upgrades to a websocket and forwards every filter change as {"filter": ...}.
func (h *Handler) FilterStream(c *gin.Context) {
	sub, err := h.Gateway.Subscribe(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer sub.Cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Filter stream upgrade failed")
		return
	}
	defer conn.Close()
	// Hijacked connections keep the server's request deadlines.
	conn.SetReadDeadline(time.Time{})

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("Filter stream closed unexpectedly")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("Filter stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) badBody(c *gin.Context, err error) {
	body := gin.H{"error": "invalid request body"}
	if !h.Production {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		gerr = &gateway.Error{Kind: gateway.KindPersistence, Message: "operation failed", Detail: err.Error()}
	}
	body := gin.H{"error": gerr.Message}
	if gerr.Detail != "" && !h.Production {
		body["details"] = gerr.Detail
	}
	c.JSON(StatusFor(gerr.Kind), body)
}

// StatusFor maps a gateway failure kind to its HTTP status.
func StatusFor(k gateway.Kind) int {
	switch k {
	case gateway.KindUnauthenticated:
		return http.StatusUnauthorized
	case gateway.KindForbidden:
		return http.StatusForbidden
	case gateway.KindInvalidRequest:
		return http.StatusBadRequest
	case gateway.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
