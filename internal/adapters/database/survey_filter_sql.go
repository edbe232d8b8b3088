package database

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/patientvoice/backend/internal/domain/repositories"
)

// filterExpression renders the filter as a goqu expression over the responses table alias.
// An unrestricted filter renders as an empty list, which goqu omits from the WHERE clause.
func filterExpression(filter repositories.SurveyFilter, alias string) exp.ExpressionList {
	clauses := filter.Clauses()
	expressions := make([]exp.Expression, 0, len(clauses))
	for _, clause := range clauses {
		column := goqu.I(alias + "." + clause.Column)
		switch clause.Op {
		case repositories.FilterOpGte:
			expressions = append(expressions, column.Gte(clause.Value))
		case repositories.FilterOpLte:
			expressions = append(expressions, column.Lte(clause.Value))
		case repositories.FilterOpEq:
			expressions = append(expressions, column.Eq(clause.Value))
		case repositories.FilterOpOverlap:
			expressions = append(expressions, goqu.L("? && ?::text[]", column, pq.Array(clause.Value)))
		}
	}
	return goqu.And(expressions...)
}

// filterWhereSQL renders the same filter as a parameterized fragment for hand-written SQL.
// Placeholders start at $firstPlaceholder. An unrestricted filter renders as TRUE.
func filterWhereSQL(filter repositories.SurveyFilter, alias string, firstPlaceholder int) (string, []interface{}) {
	clauses := filter.Clauses()
	if len(clauses) == 0 {
		return "TRUE", nil
	}

	parts := make([]string, 0, len(clauses))
	args := make([]interface{}, 0, len(clauses))
	for i, clause := range clauses {
		column := alias + "." + clause.Column
		placeholder := fmt.Sprintf("$%d", firstPlaceholder+i)
		switch clause.Op {
		case repositories.FilterOpGte:
			parts = append(parts, column+" >= "+placeholder)
			args = append(args, clause.Value)
		case repositories.FilterOpLte:
			parts = append(parts, column+" <= "+placeholder)
			args = append(args, clause.Value)
		case repositories.FilterOpEq:
			parts = append(parts, column+" = "+placeholder)
			args = append(args, clause.Value)
		case repositories.FilterOpOverlap:
			parts = append(parts, column+" && "+placeholder+"::text[]")
			args = append(args, pq.Array(clause.Value))
		}
	}
	return strings.Join(parts, " AND "), args
}
