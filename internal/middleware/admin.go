package middleware

import (
	"net/http"                     // HTTP status codes
	"zoin_economy/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// AdminIDKey is the gin context key holding the acting operator's ID
const AdminIDKey = "adminID"

// AdminOnlyMiddleware checks the user's role from the database on each request
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c) // Get userID from context
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
			return
		}
		var user domain.User // Fetch role fresh so revoked admins lose access at once
		if err := db.WithContext(c.Request.Context()).Select("id", "role").First(&user, userID).Error; err != nil || user.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required", "code": "FORBIDDEN"})
			return
		}
		c.Set(AdminIDKey, user.ID) // Record the acting operator
		c.Next()                   // Proceed to the next handler
	}
}
