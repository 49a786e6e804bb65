package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"lineage/internal/domain"
)

const (
	headerAdminKey         = "X-Admin-Key"
	headerViewerActor      = "X-Viewer-Actor"
	headerViewerPrivileges = "X-Viewer-Privileges"
)

// viewerFrom reads the viewer identity supplied by the fronting proxy.
// A request without privileges views as an unprivileged actor.
func viewerFrom(c *gin.Context) domain.Viewer {
	raw := strings.Split(c.GetHeader(headerViewerPrivileges), ",")
	ids := lo.FilterMap(raw, func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
	return domain.Viewer{
		ActorID:    strings.TrimSpace(c.GetHeader(headerViewerActor)),
		Privileges: domain.NewPrivilegeSet(ids...),
	}
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := strings.TrimSpace(c.GetHeader(headerAdminKey))
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}
