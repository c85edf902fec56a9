package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	"github.com/noah-isme/sma-pickup-api/internal/realtime"
	"github.com/noah-isme/sma-pickup-api/pkg/config"
)

type displayService interface {
	Attach(session realtime.Session)
	Subscribe(ctx context.Context, session realtime.Session, channel models.ClassChannel) error
	Unsubscribe(session realtime.Session)
}

// DisplayHandler upgrades classroom display connections to websocket and
// drives their subscribe loop.
type DisplayHandler struct {
	displays displayService
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewDisplayHandler constructs DisplayHandler.
func NewDisplayHandler(displays displayService, cfg config.RealtimeConfig, logger *zap.Logger) *DisplayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisplayHandler{
		displays: displays,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Displays live on the school network; origin filtering happens
			// at the CORS layer for the REST surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve godoc
// @Summary Display websocket endpoint
// @Description Upgrades to websocket; the display then sends {"type":"subscribe","year":7,"className":"blue"}.
// @Tags Displays
// @Router /ws/display [get]
func (h *DisplayHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if h.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(h.cfg.ReadLimitBytes)
	}

	session := realtime.NewWSSession(conn, h.cfg.WriteTimeout)
	// Heartbeats start before the first subscribe frame arrives, so idle
	// connections are not reaped by intermediaries while displays boot.
	h.displays.Attach(session)
	defer func() {
		h.displays.Unsubscribe(session)
		_ = session.Close()
	}()

	ctx := c.Request.Context()
	for {
		req, err := session.ReadSubscribe()
		if err != nil {
			if isMalformedMessage(err) {
				h.logger.Warn("ignoring malformed display message", zap.Error(err))
				continue
			}
			// Transport closed; the deferred unsubscribe cleans up.
			return
		}
		if !req.Valid() {
			h.logger.Warn("ignoring unexpected display message", zap.String("type", req.Type))
			continue
		}
		if err := h.displays.Subscribe(ctx, session, req.Channel()); err != nil {
			h.logger.Error("display subscribe failed",
				zap.String("channel", req.Channel().String()),
				zap.Error(err))
			return
		}
	}
}

// isMalformedMessage distinguishes a bad JSON frame, which the connection
// survives, from a transport-level read failure, which it does not.
func isMalformedMessage(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
