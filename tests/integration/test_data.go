package integration

import (
	"fmt"
	"time"
)

const defaultTestPassword = "TestPassword123!"

// TestUser returns credentials with a unique email so parallel tests never
// collide on the users table unique index.
func TestUser(suffix string) (email, password string) {
	email = fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
	return email, defaultTestPassword
}
