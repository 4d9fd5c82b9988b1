// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"strings"

	"github.com/sigil-dev/quarry/internal/registry"
)

func dbaTools() []registry.Descriptor {
	return []registry.Descriptor{
		queryTool("dba_userSqlList",
			"Get a list of SQL run by a user in the last number of days if a user name is provided, otherwise get list of all SQL in the last number of days.",
			[]registry.Param{str("user_name", "user name"), integer("no_days", "number of days to look back", 7)},
			func(args registry.Args) (statement, error) {
				where := []string{"CAST(st.CollectTimeStamp AS DATE) >= CURRENT_DATE - CAST(? AS INTEGER)"}
				qargs := []any{args.Int("no_days")}
				if u := args.String("user_name"); u != "" {
					where = append(where, "UPPER(lg.UserName) = UPPER(?)")
					qargs = append(qargs, u)
				}
				return statement{sql: `LOCKING ROW FOR ACCESS
SELECT st.QueryID, TRIM(lg.UserName) AS UserName, lg.StartTime,
	lg.AMPCPUTime, lg.TotalIOCount, lg.StatementType, st.SqlTextInfo
FROM DBC.DBQLSqlTbl st
JOIN DBC.DBQLogTbl lg ON lg.QueryID = st.QueryID AND lg.ProcID = st.ProcID
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY lg.StartTime DESC`, args: qargs}, nil
			}),
		queryTool("dba_tableSqlList", "Get a list of SQL run against a table in the last number of days.",
			[]registry.Param{str("table_name", "table name"), integer("no_days", "number of days to look back", 7)},
			func(args registry.Args) (statement, error) {
				return statement{sql: `LOCKING ROW FOR ACCESS
SELECT st.QueryID, TRIM(lg.UserName) AS UserName, lg.StartTime, lg.StatementType, st.SqlTextInfo
FROM DBC.DBQLSqlTbl st
JOIN DBC.DBQLogTbl lg ON lg.QueryID = st.QueryID AND lg.ProcID = st.ProcID
WHERE CAST(st.CollectTimeStamp AS DATE) >= CURRENT_DATE - CAST(? AS INTEGER)
AND UPPER(st.SqlTextInfo) LIKE '%' || UPPER(?) || '%'
ORDER BY lg.StartTime DESC`, args: []any{args.Int("no_days"), args.String("table_name")}}, nil
			}),
		queryTool("dba_tableSpace",
			"Get table space used for a table if table name is provided or get table space for all tables in a database if a database name is provided.",
			[]registry.Param{str("db_name", "Database name"), str("table_name", "table name")},
			func(args registry.Args) (statement, error) {
				var where []string
				var qargs []any
				if db := args.String("db_name"); db != "" {
					where = append(where, "UPPER(DatabaseName) = UPPER(?)")
					qargs = append(qargs, db)
				}
				if t := args.String("table_name"); t != "" {
					where = append(where, "UPPER(TableName) = UPPER(?)")
					qargs = append(qargs, t)
				}
				filter := ""
				if len(where) > 0 {
					filter = "WHERE " + strings.Join(where, " AND ") + "\n"
				}
				return statement{sql: `SELECT DatabaseName, TableName,
	SUM(CurrentPerm) AS CurrentPerm1,
	SUM(PeakPerm) AS PeakPerm,
	CAST((100 - (AVG(CurrentPerm) / NULLIFZERO(MAX(CurrentPerm)) * 100)) AS DECIMAL(5,2)) AS SkewPct
FROM DBC.AllSpaceV
` + filter + `GROUP BY DatabaseName, TableName
ORDER BY CurrentPerm1 DESC`, args: qargs}, nil
			}),
		queryTool("dba_databaseSpace",
			"Get database space if database name is provided, otherwise get all databases space allocations.",
			[]registry.Param{str("db_name", "Database name")},
			func(args registry.Args) (statement, error) {
				filter := ""
				var qargs []any
				if db := args.String("db_name"); db != "" {
					filter = "WHERE UPPER(DatabaseName) = UPPER(?)\n"
					qargs = append(qargs, db)
				}
				return statement{sql: `SELECT DatabaseName,
	CAST(SUM(MaxPerm) / 1024 / 1024 / 1024 AS DECIMAL(10,2)) AS SpaceAllocated_GB,
	CAST(SUM(CurrentPerm) / 1024 / 1024 / 1024 AS DECIMAL(10,2)) AS SpaceUsed_GB,
	CAST((SUM(MaxPerm) - SUM(CurrentPerm)) / 1024 / 1024 / 1024 AS DECIMAL(10,2)) AS FreeSpace_GB,
	CAST((SUM(CurrentPerm) * 100.0 / NULLIFZERO(SUM(MaxPerm))) AS DECIMAL(10,2)) AS PercentUsed
FROM DBC.DiskSpaceV
` + filter + `GROUP BY DatabaseName
ORDER BY SpaceUsed_GB DESC`, args: qargs}, nil
			}),
		queryTool("dba_databaseVersion", "Get Teradata database version information.", nil,
			fixed(`SELECT InfoKey, InfoData FROM DBC.DBCInfoV`)),
		queryTool("dba_resusageSummary",
			"Get the Teradata system usage summary metrics by weekday and hour for each workload type and query complexity bucket.",
			nil, resusage(false)),
		queryTool("dba_resusageUserSummary",
			"Get the Teradata system usage summary metrics by user on a specified date, or day of week and hour of day.",
			[]registry.Param{
				str("user_name", "Database user name"),
				str("date", "Date to analyze, formatted as `YYYY-MM-DD`"),
				str("dayOfWeek", "Day of week to analyze"),
				str("hourOfDay", "Hour of day to analyze"),
			},
			resusage(true)),
		queryTool("dba_flowControl", "Get the Teradata flow control metrics.", nil,
			fixed(`SELECT TheDate, TheTime, NodeID,
	SUM(FlowCtlCnt) AS FlowControlCount,
	SUM(FlowCtlTime) AS FlowControlTime
FROM DBC.ResUsageSawt
WHERE TheDate >= CURRENT_DATE - 7
GROUP BY 1, 2, 3
HAVING SUM(FlowCtlCnt) > 0
ORDER BY 1 DESC, 2 DESC`)),
		queryTool("dba_featureUsage", "Get the user feature usage metrics.", nil,
			fixed(`LOCKING ROW FOR ACCESS
SELECT CAST(lg.StartTime AS DATE) AS LogDate, TRIM(lg.UserName) AS UserName,
	f.FeatureName, COUNT(*) AS UseCount
FROM DBC.DBQLogTbl lg
JOIN DBC.QryLogFeatureListV f
	ON GETBIT(lg.FeatureUsage, (2047 - f.FeatureBitpos)) = 1
WHERE CAST(lg.StartTime AS DATE) >= CURRENT_DATE - 7
GROUP BY 1, 2, 3
ORDER BY UseCount DESC`)),
		queryTool("dba_userDelay", "Get the Teradata user delay metrics.", nil,
			fixed(`LOCKING ROW FOR ACCESS
SELECT CAST(lg.StartTime AS DATE) AS LogDate, TRIM(lg.UserName) AS UserName,
	COUNT(*) AS DelayedQueries,
	AVG(lg.DelayTime) AS AvgDelaySeconds,
	MAX(lg.DelayTime) AS MaxDelaySeconds
FROM DBC.DBQLogTbl lg
WHERE lg.DelayTime > 0 AND CAST(lg.StartTime AS DATE) >= CURRENT_DATE - 7
GROUP BY 1, 2
ORDER BY DelayedQueries DESC`)),
		queryTool("dba_tableUsageImpact",
			"Measure the usage of a table and views by users, this is helpful to understand what user and tables are driving most resource usage at any point in time.",
			[]registry.Param{str("db_name", "Database name"), str("user_name", "User name")},
			func(args registry.Args) (statement, error) {
				where := []string{"o.ObjectType = 'Tab'"}
				var qargs []any
				if db := args.String("db_name"); db != "" {
					where = append(where, "UPPER(o.ObjectDatabaseName) = UPPER(?)")
					qargs = append(qargs, db)
				}
				if u := args.String("user_name"); u != "" {
					where = append(where, "UPPER(lg.UserName) = UPPER(?)")
					qargs = append(qargs, u)
				}
				return statement{sql: `LOCKING ROW FOR ACCESS
SELECT TRIM(lg.UserName) AS UserName,
	TRIM(o.ObjectDatabaseName) AS DatabaseName,
	TRIM(o.ObjectTableName) AS TableName,
	COUNT(DISTINCT lg.QueryID) AS QueryCount,
	SUM(lg.AMPCPUTime) AS TotalCPU,
	SUM(lg.TotalIOCount) AS TotalIO
FROM DBC.DBQLogTbl lg
JOIN DBC.DBQLObjTbl o ON o.QueryID = lg.QueryID AND o.ProcID = lg.ProcID
WHERE ` + strings.Join(where, " AND ") + `
GROUP BY 1, 2, 3
ORDER BY TotalCPU DESC`, args: qargs}, nil
			}),
		queryTool("dba_sessionInfo", "Get the Teradata session information for user.",
			[]registry.Param{str("user_name", "User name")},
			func(args registry.Args) (statement, error) {
				filter := ""
				var qargs []any
				if u := args.String("user_name"); u != "" {
					filter = "WHERE UPPER(UserName) = UPPER(?)\n"
					qargs = append(qargs, u)
				}
				return statement{sql: `SELECT UserName, AccountName, SessionNo, DefaultDataBase,
	LogonDate, LogonTime, LogonSource, HostNo, CurrentCollation, ProfileName
FROM DBC.SessionInfoV
` + filter + `ORDER BY LogonDate DESC, LogonTime DESC`, args: qargs}, nil
			}),
	}
}

// resusage summarizes DBQL activity by day of week and hour, optionally
// broken down by user and filtered by the user-level arguments.
func resusage(byUser bool) builder {
	return func(args registry.Args) (statement, error) {
		dims := "TD_DAY_OF_WEEK(lg.StartTime) AS dayOfWeek, EXTRACT(HOUR FROM lg.StartTime) AS hourOfDay"
		groups := "1, 2"
		if byUser {
			dims = "TRIM(lg.UserName) AS UserName, " + dims
			groups = "1, 2, 3"
		}

		where := []string{"CAST(lg.StartTime AS DATE) >= CURRENT_DATE - 30"}
		var qargs []any
		if byUser {
			if v := args.String("user_name"); v != "" {
				where = append(where, "UPPER(lg.UserName) = UPPER(?)")
				qargs = append(qargs, v)
			}
			if v := args.String("date"); v != "" {
				where = append(where, "CAST(lg.StartTime AS DATE) = CAST(? AS DATE FORMAT 'YYYY-MM-DD')")
				qargs = append(qargs, v)
			}
			if v := args.String("dayOfWeek"); v != "" {
				where = append(where, "TD_DAY_OF_WEEK(lg.StartTime) = CAST(? AS INTEGER)")
				qargs = append(qargs, v)
			}
			if v := args.String("hourOfDay"); v != "" {
				where = append(where, "EXTRACT(HOUR FROM lg.StartTime) = CAST(? AS INTEGER)")
				qargs = append(qargs, v)
			}
		}

		return statement{sql: `LOCKING ROW FOR ACCESS
SELECT ` + dims + `,
	CASE WHEN lg.StatementType IN ('Select', 'Help', 'Show') THEN 'Query'
		WHEN lg.StatementType IN ('Insert', 'Update', 'Delete', 'Merge Into') THEN 'DML'
		ELSE 'Other' END AS WorkloadType,
	COUNT(*) AS Requests,
	SUM(lg.AMPCPUTime) AS AMPCPUTime,
	SUM(lg.TotalIOCount) AS TotalIOCount,
	AVG(lg.DelayTime) AS AvgDelayTime
FROM DBC.DBQLogTbl lg
WHERE ` + strings.Join(where, " AND ") + `
GROUP BY ` + groups + `, WorkloadType
ORDER BY ` + groups, args: qargs}, nil
	}
}
