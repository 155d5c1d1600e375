package authz

// Action names a governed capability checked against the permission catalog.
type Action string

// Governed actions. Grants accumulate upward through the hierarchy; each role's
// own list below holds only the actions it introduces.
const (
	ActionViewDashboard       Action = "view_dashboard_basic"
	ActionRequestPromotion    Action = "request_promotion"
	ActionCreateProblem       Action = "create_problem"
	ActionEditOwnProblem      Action = "edit_own_problem"
	ActionViewMyProblems      Action = "view_my_problems"
	ActionEditAnyProblem      Action = "edit_any_problem"
	ActionApproveProblem      Action = "approve_problem"
	ActionRejectProblem       Action = "reject_problem"
	ActionViewAllProblems     Action = "view_all_problems"
	ActionManageUsers         Action = "manage_users"
	ActionViewAllUsers        Action = "view_all_users"
	ActionDeleteUser          Action = "delete_user"
	ActionPromoteUser         Action = "promote_user"
	ActionDemoteUser          Action = "demote_user"
	ActionSetUserRole         Action = "set_user_role"
	ActionViewAuditLogs       Action = "view_audit_logs"
	ActionViewPendingRequests Action = "view_pending_requests"
	ActionDeleteProblem       Action = "delete_problem"
	ActionApproveRequests     Action = "approve_requests"
	ActionRejectRequests      Action = "reject_requests"
	ActionRevertActions       Action = "revert_actions"
	ActionManageSuperAdmins   Action = "manage_super_admins"
)

// grants lists the actions each role introduces on top of the roles below it.
// The lists are disjoint; the catalog computes the inherited union.
var grants = map[Role][]Action{
	RoleUser: {
		ActionViewDashboard,
	},
	RoleProblemSetter: {
		ActionCreateProblem,
		ActionEditOwnProblem,
		ActionViewMyProblems,
		ActionRequestPromotion,
	},
	RoleAdmin: {
		ActionEditAnyProblem,
		ActionApproveProblem,
		ActionRejectProblem,
		ActionViewAllProblems,
		ActionManageUsers,
		ActionViewAllUsers,
		ActionDeleteUser,
		ActionPromoteUser,
		ActionDemoteUser,
		ActionSetUserRole,
		ActionViewAuditLogs,
		ActionViewPendingRequests,
		ActionDeleteProblem,
	},
	RoleSuperAdmin: {
		ActionApproveRequests,
		ActionRejectRequests,
		ActionRevertActions,
		ActionManageSuperAdmins,
	},
}

// userManagementActions require an admin rank regardless of inherited grants.
var userManagementActions = map[Action]struct{}{
	ActionPromoteUser: {},
	ActionDemoteUser:  {},
	ActionSetUserRole: {},
	ActionDeleteUser:  {},
}
