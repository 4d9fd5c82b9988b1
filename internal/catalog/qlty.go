// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"github.com/sigil-dev/quarry/internal/registry"
)

func tableParam() registry.Param {
	return str("table_name", "table name, optionally prefixed with the database name")
}

func columnParam() registry.Param {
	return str("col_name", "column name")
}

// tableColumn quotes the table_name and col_name arguments.
func tableColumn(args registry.Args) (table, column string, err error) {
	if table, err = qualifiedIdent(args, "table_name"); err != nil {
		return "", "", err
	}
	if column, err = ident(args, "col_name"); err != nil {
		return "", "", err
	}
	return table, column, nil
}

// tableOnly builds a statement from the quoted table_name argument.
func tableOnly(render func(table string) string) builder {
	return func(args registry.Args) (statement, error) {
		table, err := qualifiedIdent(args, "table_name")
		if err != nil {
			return statement{}, err
		}
		return statement{sql: render(table)}, nil
	}
}

// tableAndColumn builds a statement from the quoted table_name and col_name arguments.
func tableAndColumn(render func(table, column string) string) builder {
	return func(args registry.Args) (statement, error) {
		table, column, err := tableColumn(args)
		if err != nil {
			return statement{}, err
		}
		return statement{sql: render(table, column)}, nil
	}
}

func qualityTools() []registry.Descriptor {
	return []registry.Descriptor{
		queryTool("qlty_missingValues",
			"Get the column names that having missing values in a table.",
			[]registry.Param{tableParam()},
			tableOnly(func(table string) string {
				return `SELECT ColumnName, NullCount, NullPercentage
FROM TD_ColumnSummary (
	ON ` + table + ` AS InputTable
	USING TargetColumns ('[:]')
) AS dt
ORDER BY NullCount DESC`
			})),
		queryTool("qlty_negativeValues",
			"Get the column names that having negative values in a table.",
			[]registry.Param{tableParam()},
			tableOnly(func(table string) string {
				return `SELECT ColumnName, NegativeCount
FROM TD_ColumnSummary (
	ON ` + table + ` AS InputTable
	USING TargetColumns ('[:]')
) AS dt
WHERE NegativeCount > 0
ORDER BY NegativeCount DESC`
			})),
		queryTool("qlty_distinctCategories",
			"Get the destinct categories from column in a table.",
			[]registry.Param{tableParam(), columnParam()},
			tableAndColumn(func(table, column string) string {
				return `SELECT * FROM TD_CategoricalSummary (
	ON ` + table + ` AS InputTable
	USING TargetColumns (` + quoteLiteral(column) + `)
) AS dt`
			})),
		queryTool("qlty_standardDeviation",
			"Get the mean and standard deviation for a column in a table.",
			[]registry.Param{tableParam(), columnParam()},
			tableAndColumn(func(table, column string) string {
				return `SELECT * FROM TD_UnivariateStatistics (
	ON ` + table + ` AS InputTable
	USING TargetColumns (` + quoteLiteral(column) + `)
	Stats ('MEAN', 'STD')
) AS dt
ORDER BY 1, 2`
			})),
		queryTool("qlty_columnSummary",
			"Get the column summary statistics for a table.",
			[]registry.Param{tableParam()},
			tableOnly(func(table string) string {
				return `SELECT * FROM TD_ColumnSummary (
	ON ` + table + ` AS InputTable
	USING TargetColumns ('[:]')
) AS dt`
			})),
		queryTool("qlty_univariateStatistics",
			"Get the univariate statistics for a table.",
			[]registry.Param{tableParam(), columnParam()},
			tableAndColumn(func(table, column string) string {
				return `SELECT * FROM TD_UnivariateStatistics (
	ON ` + table + ` AS InputTable
	USING TargetColumns (` + quoteLiteral(column) + `)
	Stats ('ALL')
) AS dt
ORDER BY 1, 2`
			})),
		queryTool("qlty_rowsWithMissingValues",
			"Get the rows with missing values in a table.",
			[]registry.Param{tableParam(), columnParam()},
			tableAndColumn(func(table, column string) string {
				return `SELECT * FROM TD_GetRowsWithMissingValues (
	ON ` + table + ` AS InputTable
	USING TargetColumns (` + quoteLiteral(column) + `)
) AS dt`
			})),
	}
}

// quoteLiteral turns a quoted identifier into the string literal form the
// TD_* table operators expect in TargetColumns. The identifier has already
// been validated, so it contains no quotes of its own.
func quoteLiteral(quotedIdent string) string {
	return "'" + quotedIdent[1:len(quotedIdent)-1] + "'"
}
