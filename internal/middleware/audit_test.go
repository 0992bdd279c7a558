package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/models"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/escrow/lock", "POST", "Escrow", "Create"},
		{"/api/milestones/:id/release", "POST", "Milestones", "Create"},
		{"/api/users/:id", "PUT", "Users", "Update"},
		{"/api/system-logs", "DELETE", "System Logs", "Delete"},
		{"/api/", "PATCH", "Unknown", "PATCH"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = (%q, %q), expected (%q, %q)",
				tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	body := `{"username":"admin","password": "hunter22"}`
	masked := maskSensitiveFields(body)
	if strings.Contains(masked, "hunter22") {
		t.Errorf("password leaked: %s", masked)
	}
	if !strings.Contains(masked, `"username":"admin"`) {
		t.Errorf("non-sensitive field altered: %s", masked)
	}
}

func TestCurrentActor(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ContextUserID, uint(9))
	c.Set(ContextRole, models.RoleAdmin)

	actor := CurrentActor(c)
	if actor.UserID != 9 || !actor.IsAdmin() {
		t.Errorf("CurrentActor = %+v", actor)
	}

	empty, _ := gin.CreateTestContext(httptest.NewRecorder())
	if a := CurrentActor(empty); a.UserID != 0 || a.IsAdmin() {
		t.Errorf("anonymous CurrentActor = %+v", a)
	}
}
