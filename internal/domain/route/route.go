// Package route describes the resolved target of a request.
package route

// Category classifies a route for access and method checks.
type Category string

const (
	// CategoryPublicView is a page rendered for any allowed identity.
	CategoryPublicView Category = "public_view"
	// CategoryAdminView is a page restricted to administrators.
	CategoryAdminView Category = "admin_view"
	// CategoryAjax is a state-changing endpoint that only accepts POST.
	CategoryAjax Category = "ajax"
	// CategoryAction is a side-effecting GET endpoint.
	CategoryAction Category = "action"
)

// Route is the descriptor produced by route resolution.
type Route struct {
	Name     string
	Category Category
}

// IsAdmin reports whether the route requires an administrator.
func (r Route) IsAdmin() bool { return r.Category == CategoryAdminView }

// IsAjax reports whether the route is an AJAX endpoint.
func (r Route) IsAjax() bool { return r.Category == CategoryAjax }

// IsAction reports whether the route is a side-effecting GET action.
func (r Route) IsAction() bool { return r.Category == CategoryAction }

// IsView reports whether the route renders a page.
func (r Route) IsView() bool {
	return r.Category == CategoryPublicView || r.Category == CategoryAdminView
}

// Home is the default route when no routing parameter is present.
var Home = Route{Name: "home", Category: CategoryPublicView}
