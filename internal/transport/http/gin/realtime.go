package httpgin

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventix/eventix/internal/realtime"
)

// handleRealtime streams hub messages to the viewer over SSE. The first
// frame is a "connected" event carrying the client id, which the viewer
// uses for the join/leave routes. An optional ?event= query joins the
// viewer to that event's topic at connect time. Disconnecting removes the
// viewer from the registry and all its topics.
func handleRealtime(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := hub.Connect()
		defer hub.Disconnect(client)

		if eventID, ok := parseInt64Query(c, "event"); ok {
			hub.Join(client.ID(), eventID)
		}

		c.Header("Cache-Control", "no-cache")
		c.SSEvent("connected", ConnectedResponse{ClientID: client.ID()})
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case msg, ok := <-client.Messages():
				if !ok {
					return false
				}
				c.SSEvent(msg.Kind, msg.Data)
				return true
			}
		})
	}
}

// handleJoinEvent subscribes an open realtime connection to one event's
// topic.
func handleJoinEvent(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "eventID")
		if !ok {
			return
		}

		if !hub.Join(c.Param("clientID"), eventID) {
			c.JSON(http.StatusNotFound, errorResponse("Unknown realtime client"))
			return
		}

		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Joined event channel"})
	}
}

// handleLeaveEvent unsubscribes an open realtime connection from one
// event's topic.
func handleLeaveEvent(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "eventID")
		if !ok {
			return
		}

		if !hub.Leave(c.Param("clientID"), eventID) {
			c.JSON(http.StatusNotFound, errorResponse("Unknown realtime client"))
			return
		}

		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Left event channel"})
	}
}
