package http

import (
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/dkeye/poker/internal/app/orch"
	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 320
	maxQRSize     = 1024
)

type roomsHandler struct {
	rooms     *core.Directory
	publicURL string
}

func (h *roomsHandler) list(c *gin.Context) {
	c.JSON(nethttp.StatusOK, h.rooms.List())
}

// get returns the same redacted state the room broadcasts.
func (h *roomsHandler) get(c *gin.Context) {
	room, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(nethttp.StatusOK, room.Snapshot())
}

func (h *roomsHandler) newCode(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"roomCode": h.rooms.NewCode()})
}

// qr renders a PNG QR code of the room's join link.
func (h *roomsHandler) qr(c *gin.Context) {
	room, ok := h.lookup(c)
	if !ok {
		return
	}
	size := defaultQRSize
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid size"})
			return
		}
		size = n
	}

	url := h.baseURL(c) + "/?room=" + room.Code().String()
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", room.Code().String()).Msg("qr generation failed")
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(nethttp.StatusOK, "image/png", png)
}

func (h *roomsHandler) lookup(c *gin.Context) (*core.Room, bool) {
	code, err := domain.NormalizeRoomCode(c.Param("code"))
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": orch.MsgInvalidCode})
		return nil, false
	}
	room, ok := h.rooms.Get(code)
	if !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": orch.MsgRoomNotFound})
		return nil, false
	}
	return room, true
}

func (h *roomsHandler) baseURL(c *gin.Context) string {
	if h.publicURL != "" {
		return strings.TrimSuffix(h.publicURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
