package crud

import (
	"fmt"
	"net/http"

	"github.com/schemasmith/schemasmith/auth"
	"github.com/schemasmith/schemasmith/domain/model"
)

// actionForMethod maps an HTTP method to the RBAC action it needs. Methods
// with no action (OPTIONS, HEAD) map to "".
func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return model.ActionCreate
	case http.MethodGet:
		return model.ActionRead
	case http.MethodPut, http.MethodPatch:
		return model.ActionUpdate
	case http.MethodDelete:
		return model.ActionDelete
	default:
		return ""
	}
}

// Permissions enforces the definition's role-to-actions mapping. A role is
// allowed when its set contains the required action or "all"; a role absent
// from the mapping has no permissions.
func Permissions(def model.Definition) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := actionForMethod(r.Method)
			if action == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, _ := auth.FromContext(r.Context())
			if !allowed(def.RBAC[principal.Role], action) {
				respondError(w, http.StatusForbidden,
					fmt.Sprintf("role %q cannot perform %q on %s", principal.Role, action, def.Name))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowed(permitted []string, action string) bool {
	for _, p := range permitted {
		if p == action || p == model.ActionAll {
			return true
		}
	}
	return false
}
