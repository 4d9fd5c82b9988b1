// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"context"
	"strings"

	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/pkg/envelope"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// systemDatabases are excluded from catalog listings when no database is named.
const systemDatabases = `'DBC','SYSLIB','SystemFe','SYSUDTLIB','SYSBAR','SYSSPATIAL','TD_SYSFNLIB',` +
	`'TD_SYSXML','TDStats','TDQCD','TD_SYSGPL','SQLJ','SysAdmin','SYSJDBC','dbcmngr','LockLogShredder',` +
	`'TDPUSER','TDMaps','Crashdumps','External_AP','PDCRADM','PDCRDATA','PDCRINFO','PDCRSTG','PDCRTPCD'`

func baseTools() []registry.Descriptor {
	return []registry.Descriptor{
		queryTool("base_readQuery", "Executes a SQL query to read from the database.",
			[]registry.Param{str("sql", "SQL that reads from the database to run")},
			func(args registry.Args) (statement, error) {
				sql := strings.TrimSpace(args.String("sql"))
				if sql == "" {
					return statement{}, quarryerr.New(quarryerr.CodeDispatchInvalidInput, "argument \"sql\" is required")
				}
				return statement{sql: sql}, nil
			}),
		{
			Name:        "base_writeQuery",
			Kind:        registry.KindQuery,
			Type:        registry.TypeTool,
			Description: "Executes a SQL query to write to the database.",
			Params:      []registry.Param{str("sql", "SQL that writes to the database to run")},
			Source:      registry.SourceBuiltin,
			Handler:     registry.StaticHandler(writeQuery),
		},
		queryTool("base_tableDDL", "Display table DDL definition.",
			[]registry.Param{str("db_name", "Database name"), str("table_name", "table name")},
			func(args registry.Args) (statement, error) {
				name, err := qualified(args, "db_name", "table_name")
				if err != nil {
					return statement{}, err
				}
				return statement{sql: "SHOW TABLE " + name}, nil
			}),
		queryTool("base_databaseList", "List all databases in the Teradata System.", nil,
			fixed(`SELECT DataBaseName,
	DECODE(DBKind, 'U', 'User', 'D', 'DataBase') AS DBType,
	CommentString
FROM DBC.DatabasesV dv
WHERE OwnerName <> 'PDCRADM'`)),
		queryTool("base_tableList", "List objects in a database.",
			[]registry.Param{str("db_name", "database name")},
			func(args registry.Args) (statement, error) {
				db := args.String("db_name")
				if db == "" {
					return statement{sql: `SELECT DatabaseName, TableName, TableKind
FROM DBC.TablesV tv
WHERE tv.TableKind IN ('T','V','O','Q')
AND tv.DatabaseName NOT IN (` + systemDatabases + `)
ORDER BY DatabaseName, TableName`}, nil
				}
				return statement{sql: `SELECT DatabaseName, TableName, TableKind
FROM DBC.TablesV tv
WHERE UPPER(tv.DatabaseName) = UPPER(?)
AND tv.TableKind IN ('T','V','O','Q')
ORDER BY TableName`, args: []any{db}}, nil
			}),
		queryTool("base_columnDescription", "Show detailed column information about a database table.",
			[]registry.Param{str("db_name", "Database name"), str("obj_name", "table name")},
			func(args registry.Args) (statement, error) {
				if args.String("db_name") == "" || args.String("obj_name") == "" {
					return statement{}, quarryerr.New(quarryerr.CodeDispatchInvalidInput, "db_name and obj_name are required")
				}
				return statement{sql: `SELECT c.DatabaseName, c.TableName, c.ColumnName,
	CASE c.ColumnType
		WHEN '++' THEN 'TD_ANYTYPE' WHEN 'A1' THEN 'UDT' WHEN 'AT' THEN 'TIME'
		WHEN 'BF' THEN 'BYTE' WHEN 'BO' THEN 'BLOB' WHEN 'BV' THEN 'VARBYTE'
		WHEN 'CF' THEN 'CHAR' WHEN 'CO' THEN 'CLOB' WHEN 'CV' THEN 'VARCHAR'
		WHEN 'D' THEN 'DECIMAL' WHEN 'DA' THEN 'DATE' WHEN 'F' THEN 'FLOAT'
		WHEN 'I' THEN 'INTEGER' WHEN 'I1' THEN 'BYTEINT' WHEN 'I2' THEN 'SMALLINT'
		WHEN 'I8' THEN 'BIGINT' WHEN 'JN' THEN 'JSON' WHEN 'N' THEN 'NUMBER'
		WHEN 'PD' THEN 'PERIOD(DATE)' WHEN 'TS' THEN 'TIMESTAMP' WHEN 'SZ' THEN 'TIMESTAMP WITH TIME ZONE'
		WHEN 'XM' THEN 'XML' ELSE c.ColumnType
	END AS CType,
	c.ColumnLength, c.Nullable, c.CommentString
FROM DBC.ColumnsVX c
WHERE UPPER(c.DatabaseName) = UPPER(?) AND UPPER(c.TableName) = UPPER(?)
ORDER BY c.ColumnId`, args: []any{args.String("db_name"), args.String("obj_name")}}, nil
			}),
		queryTool("base_tablePreview", "Get data samples and structure overview from a database table.",
			[]registry.Param{str("db_name", "Database name"), str("table_name", "table name")},
			func(args registry.Args) (statement, error) {
				name, err := qualified(args, "db_name", "table_name")
				if err != nil {
					return statement{}, err
				}
				return statement{sql: "SELECT TOP 5 * FROM " + name}, nil
			}),
		queryTool("base_tableAffinity",
			"Get tables commonly used together by database users, this is helpful to infer relationships between tables.",
			[]registry.Param{str("db_name", "Database name"), str("obj_name", "Table or view name")},
			func(args registry.Args) (statement, error) {
				if args.String("db_name") == "" || args.String("obj_name") == "" {
					return statement{}, quarryerr.New(quarryerr.CodeDispatchInvalidInput, "db_name and obj_name are required")
				}
				return statement{sql: `LOCKING ROW FOR ACCESS
SELECT TRIM(o2.ObjectDatabaseName) AS DatabaseName,
	TRIM(o2.ObjectTableName) AS TableName,
	COUNT(DISTINCT o1.QueryID) AS CoQueryCount
FROM DBC.DBQLObjTbl o1
JOIN DBC.DBQLObjTbl o2
	ON o1.QueryID = o2.QueryID AND o1.ProcID = o2.ProcID
WHERE o1.ObjectType = 'Tab' AND o2.ObjectType = 'Tab'
AND UPPER(o1.ObjectDatabaseName) = UPPER(?) AND UPPER(o1.ObjectTableName) = UPPER(?)
AND NOT (o2.ObjectDatabaseName = o1.ObjectDatabaseName AND o2.ObjectTableName = o1.ObjectTableName)
GROUP BY 1, 2
ORDER BY CoQueryCount DESC`, args: []any{args.String("db_name"), args.String("obj_name")}}, nil
			}),
		queryTool("base_tableUsage",
			"Measure the usage of a table and views by users in a given schema, this is helpful to infer what database objects are most actively used or drive most value.",
			[]registry.Param{str("db_name", "Database name")},
			func(args registry.Args) (statement, error) {
				filter := "o.ObjectDatabaseName NOT IN (" + systemDatabases + ")"
				var qargs []any
				if db := args.String("db_name"); db != "" {
					filter = "UPPER(o.ObjectDatabaseName) = UPPER(?)"
					qargs = append(qargs, db)
				}
				return statement{sql: `LOCKING ROW FOR ACCESS
SELECT TRIM(o.ObjectDatabaseName) AS DatabaseName,
	TRIM(o.ObjectTableName) AS TableName,
	COUNT(DISTINCT o.QueryID) AS QueryCount,
	COUNT(DISTINCT l.UserName) AS UserCount,
	MAX(CAST(l.StartTime AS DATE)) AS LastUsed
FROM DBC.DBQLObjTbl o
JOIN DBC.DBQLogTbl l ON l.QueryID = o.QueryID AND l.ProcID = o.ProcID
WHERE o.ObjectType = 'Tab' AND ` + filter + `
GROUP BY 1, 2
ORDER BY QueryCount DESC`, args: qargs}, nil
			}),
	}
}

// writeQuery runs a statement that modifies data and reports affected rows.
func writeQuery(ctx context.Context, res registry.Resources, args registry.Args) (any, error) {
	sql := strings.TrimSpace(args.String("sql"))
	if sql == "" {
		return nil, quarryerr.New(quarryerr.CodeDispatchInvalidInput, "argument \"sql\" is required")
	}
	n, err := res.Conn.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	return envelope.Response(map[string]any{"rows_affected": n}, map[string]any{
		"tool_name": "base_writeQuery",
		"sql":       sql,
	})
}

// qualified builds a quoted db.table name from two arguments.
func qualified(args registry.Args, dbParam, tableParam string) (string, error) {
	db, err := ident(args, dbParam)
	if err != nil {
		return "", err
	}
	table, err := ident(args, tableParam)
	if err != nil {
		return "", err
	}
	return db + "." + table, nil
}
