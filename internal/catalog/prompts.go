// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"github.com/sigil-dev/quarry/internal/registry"
)

func prompt(name, description string, params []registry.Param, text string) registry.Descriptor {
	return registry.Descriptor{
		Name:        name,
		Kind:        registry.KindAction,
		Type:        registry.TypePrompt,
		Description: description,
		Params:      params,
		Source:      registry.SourceBuiltin,
		Handler:     registry.MustPromptTemplate(name, text),
	}
}

func prompts() []registry.Descriptor {
	dbName := requiredStr("database_name", "Database name")
	days := registry.Param{Name: "number_days", Type: registry.ParamInteger, Description: "Number of days of history to consider", Required: true}

	return []registry.Descriptor{
		prompt("base_query", "Create a SQL query against the database.",
			[]registry.Param{requiredStr("qry", "Question to answer with a SQL query")},
			`Create a Teradata SQL query that answers the following question, run it with the base_readQuery tool and summarize the result.

Question: {{.qry}}`),
		prompt("base_tableBusinessDesc", "Generate a business description of a table.",
			[]registry.Param{dbName, requiredStr("table_name", "Table name")},
			`You are a Teradata analyst documenting {{.database_name}}.{{.table_name}}.

1. Use base_tableDDL to read the table definition.
2. Use base_tablePreview to look at a sample of the data.
3. Write a short business description of the table followed by one line per column describing what it holds.`),
		prompt("base_databaseBusinessDesc", "Generate a business description of a database.",
			[]registry.Param{dbName},
			`You are a Teradata analyst documenting the {{.database_name}} database.

1. Use base_tableList to list the objects in {{.database_name}}.
2. For the most important tables use base_tableDDL and base_tablePreview.
3. Describe the business purpose of the database, then give one line per table.`),
		prompt("dba_databaseHealthAssessment", "Assess the overall health of the Teradata system.", nil,
			`You are a Teradata DBA. Assess the health of this system.

1. Use dba_databaseVersion to record the version.
2. Use dba_databaseSpace to find databases above 80% space usage.
3. Use dba_resusageSummary and dba_flowControl to look for resource pressure.
4. Use dba_userDelay to find users waiting on workload management.

Summarize the findings as a prioritized list of issues with recommended actions.`),
		prompt("dba_userActivityAnalysis", "Analyze user activity on the system.", nil,
			`You are a Teradata DBA. Analyze user activity over the last 7 days.

1. Use dba_resusageUserSummary to rank users by CPU and IO.
2. Use dba_userSqlList for the top 3 users to see what they ran.
3. Use dba_featureUsage to note which features those users rely on.

Report the heaviest users, their workload pattern and any tuning opportunities.`),
		prompt("dba_tableArchive", "Identify tables that are candidates for archiving.", nil,
			`You are a Teradata DBA looking for archive candidates.

1. Use dba_tableSpace to find the largest tables.
2. Use base_tableUsage to find when each was last used.

List tables that are large and have not been used recently, with their size and last use date.`),
		prompt("dba_databaseLineage", "Build the lineage of a database from query history.",
			[]registry.Param{dbName, days},
			`You are a Teradata DBA mapping data lineage for {{.database_name}} over the last {{.number_days}} days.

1. Use base_tableList to list the tables in {{.database_name}}.
2. For each table use dba_tableSqlList with no_days={{.number_days}} to find statements that write to it.
3. From the INSERT, UPDATE and MERGE statements work out which source tables feed each target.

Present the lineage as a list of source -> target edges.`),
		prompt("dba_tableDropImpact", "Assess the impact of dropping a table.",
			[]registry.Param{dbName, requiredStr("table_name", "Table name"), days},
			`You are a Teradata DBA assessing the impact of dropping {{.database_name}}.{{.table_name}}.

1. Use dba_tableSqlList with table_name={{.table_name}} and no_days={{.number_days}} to find every statement that touched it.
2. Use base_tableAffinity to find tables used together with it.
3. Identify the users and processes that depend on the table.

State whether the table can be dropped safely and what would break if it were.`),
		prompt("qlty_databaseQuality", "Assess the data quality of a database.",
			[]registry.Param{dbName},
			`You are a data quality analyst reviewing the {{.database_name}} database.

1. Use base_tableList to list the tables in {{.database_name}}.
2. For each table use qlty_columnSummary and qlty_missingValues.
3. For numeric columns with suspicious values use qlty_univariateStatistics.

Summarize the quality issues per table and suggest fixes.`),
	}
}
