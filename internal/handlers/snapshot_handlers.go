package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
)

// SnapshotHandler lists archived snapshots.
type SnapshotHandler struct {
	snapshotService services.SnapshotService
}

func NewSnapshotHandler(ss services.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: ss}
}

// GetSnapshots returns every archived version of one entity, oldest first.
func (h *SnapshotHandler) GetSnapshots(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.snapshotService.List(c.Request.Context(), actor, c.Query("entity_type"), c.Query("entity_id"))
	if err != nil {
		respondServiceError(c, err, "GetSnapshots", "Failed to retrieve snapshots.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}
