package server

// Route paths served by the API.
const (
	RouteRoot     = "/"
	RouteHealth   = "/health"
	RouteStatus   = "/status"
	RouteRun      = "/hackrx/run"
	APIBase       = "/api/v1"
	RouteRunAlias = APIBase + RouteRun
)

// RunRoutes lists every path accepting question batches.
func RunRoutes() []string {
	return []string{RouteRun, RouteRunAlias}
}
