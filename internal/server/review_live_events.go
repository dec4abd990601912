package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/internal/reviewevents"
)

const liveEventHeartbeat = 15 * time.Second

// StreamReviewEvents pushes a parent's review timeline over SSE.
// Subscribers get the recent backlog first, then live events until the
// client disconnects.
func (s *Server) StreamReviewEvents(c *gin.Context) {
	parent, err := s.parentSvc.GetByID(c.Request.Context(), parentdomain.GetParentRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, backlog, err := s.reviewEvents.Subscribe(parent.ID.String())
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer sub.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	c.Writer.WriteString("retry: 2000\n\n")
	for _, event := range backlog {
		writeLiveEvent(c, event)
	}
	flusher.Flush()

	heartbeat := time.NewTicker(liveEventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			writeLiveEvent(c, event)
			flusher.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeLiveEvent(c *gin.Context, event reviewevents.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.Writer.WriteString("data: ")
	c.Writer.Write(data)
	c.Writer.WriteString("\n\n")
}
