// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"github.com/sigil-dev/quarry/internal/registry"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// byName builds a statement whose single bound value is a required argument.
func byName(param, sql string) builder {
	return func(args registry.Args) (statement, error) {
		v := args.String(param)
		if v == "" {
			return statement{}, quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput, "argument %q is required", param)
		}
		return statement{sql: sql, args: []any{v}}, nil
	}
}

func securityTools() []registry.Descriptor {
	return []registry.Descriptor{
		queryTool("sec_userDbPermissions", "Get permissions for a user.",
			[]registry.Param{str("user_name", "user name")},
			byName("user_name", `SELECT DatabaseName, TableName, ColumnName, AccessRight, GrantAuthority, GrantorName
FROM DBC.AllRightsV
WHERE UPPER(UserName) = UPPER(?)
ORDER BY DatabaseName, TableName, AccessRight`)),
		queryTool("sec_rolePermissions", "Get permissions for a role.",
			[]registry.Param{str("role_name", "role name")},
			byName("role_name", `SELECT DatabaseName, TableName, ColumnName, AccessRight, GrantorName, CreateTimeStamp
FROM DBC.AllRoleRightsV
WHERE UPPER(RoleName) = UPPER(?)
ORDER BY DatabaseName, TableName, AccessRight`)),
		queryTool("sec_userRoles", "Get roles assigned to a user.",
			[]registry.Param{str("user_name", "user name")},
			byName("user_name", `SELECT RoleName, Grantor, WhenGranted, DefaultRole, WithAdmin
FROM DBC.RoleMembersV
WHERE UPPER(Grantee) = UPPER(?)
ORDER BY RoleName`)),
	}
}
