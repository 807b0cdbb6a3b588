package rbac

// Default policy, mirrored from the route table. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"enrollment:view-own",
		"attendance:view-own",
		"grade:view-own",
		"announcement:view",
		"user:change_password",
	},
	"teacher": {
		"student:list",
		"student:view",
		"teacher:list",
		"teacher:view",
		"course:view",
		"enrollment:create",
		"enrollment:drop",
		"enrollment:view-all",
		"attendance:mark",
		"attendance:view-all",
		"grade:create",
		"grade:update",
		"grade:publish",
		"grade:view-all",
		"announcement:*",
		"asset:upload",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
