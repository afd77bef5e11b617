package constants

const (
	ViewData      = "view_data"
	ManageHolds   = "manage_holds"
	ManageLinks   = "manage_links"
	ViewAnalytics = "view_analytics"
)
