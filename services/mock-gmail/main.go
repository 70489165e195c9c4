package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/truesoul/outreach/services/mock-gmail/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The Gmail surface the engagement monitor consumes
	users := r.Group("/gmail/v1/users/:userId")
	{
		users.GET("/profile", handleProfile)
		users.GET("/history", handleListHistory)
		users.GET("/messages", handleListMessages)
		users.GET("/messages/:id", handleGetMessage)
	}

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/messages/add", handleAddMessage)
		admin.POST("/history/expire", handleExpireHistory)
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting mock Gmail API server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func handleProfile(c *gin.Context) {
	email := c.Param("userId")
	if email == "me" {
		email = "sender@truesoul.example"
	}

	emailAddress, historyID := mock.Profile(email)
	c.JSON(http.StatusOK, gin.H{
		"emailAddress": emailAddress,
		"historyId":    historyID,
	})
}

func handleListHistory(c *gin.Context) {
	startHistoryID := c.Query("startHistoryId")
	if startHistoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startHistoryId is required"})
		return
	}

	pageSize := 100
	if raw := c.Query("maxResults"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}

	page, err := mock.History(startHistoryID, c.Query("pageToken"), pageSize)
	if errors.Is(err, mock.ErrHistoryExpired) {
		// The real API answers an unresolvable cursor with 404.
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    http.StatusNotFound,
			"message": "Requested entity was not found.",
		}})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"historyId": page.HistoryID}
	if len(page.Records) > 0 {
		resp["history"] = page.Records
	}
	if page.NextPageToken != "" {
		resp["nextPageToken"] = page.NextPageToken
	}
	c.JSON(http.StatusOK, resp)
}

func handleListMessages(c *gin.Context) {
	pageSize := 500
	if raw := c.Query("maxResults"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}

	page, err := mock.Messages(c.Query("pageToken"), pageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"resultSizeEstimate": len(page.Refs)}
	if len(page.Refs) > 0 {
		resp["messages"] = page.Refs
	}
	if page.NextPageToken != "" {
		resp["nextPageToken"] = page.NextPageToken
	}
	c.JSON(http.StatusOK, resp)
}

func handleGetMessage(c *gin.Context) {
	msg, ok := mock.GetMessage(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    http.StatusNotFound,
			"message": "Requested entity was not found.",
		}})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func handleAddMessage(c *gin.Context) {
	var req struct {
		Headers map[string]string `json:"headers"`
		Body    string            `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "headers are required"})
		return
	}

	msg := mock.AddMessage(req.Headers, req.Body)
	c.JSON(http.StatusOK, gin.H{
		"id":      msg.ID,
		"message": fmt.Sprintf("Stored message %s", msg.ID),
	})
}

func handleExpireHistory(c *gin.Context) {
	historyID := mock.ExpireHistory()
	c.JSON(http.StatusOK, gin.H{
		"historyId": historyID,
		"message":   "All previous history cursors are now invalid",
	})
}
