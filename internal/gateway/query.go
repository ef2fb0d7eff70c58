package gateway

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var conditionOps = map[string]struct{}{
	">=": {},
	">":  {},
	"<=": {},
	"<":  {},
	"<>": {},
}

func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// sortedKeys возвращает ключи фильтра в детерминированном порядке,
// чтобы построенный запрос был воспроизводим.
func sortedKeys(f Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere строит условие WHERE из фильтра, продолжая нумерацию
// placeholder-ов с указанной позиции.
func buildWhere(relation string, filter Filter, argPos int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	var (
		conds []string
		args  []any
	)

	for _, col := range sortedKeys(filter) {
		if err := validIdent(col); err != nil {
			return "", nil, err
		}

		var colConds []Condition
		switch v := filter[col].(type) {
		case Condition:
			colConds = []Condition{v}
		case []Condition:
			colConds = v
		default:
			colConds = []Condition{{Op: "=", Value: v}}
		}

		for _, c := range colConds {
			if c.Op != "=" {
				if _, known := conditionOps[c.Op]; !known {
					return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
				}
			}
			conds = append(conds, fmt.Sprintf("%s.%s %s $%d", relation, col, c.Op, argPos))
			args = append(args, c.Value)
			argPos++
		}
	}

	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// buildSelect строит запрос чтения отношения с фильтром, соединениями
// и сортировкой из контракта шлюза.
func buildSelect(relation string, filter Filter, opts *QueryOptions) (string, []any, error) {
	if err := validIdent(relation); err != nil {
		return "", nil, err
	}

	cols := []string{relation + ".*"}
	var joins []string

	if opts != nil {
		for _, j := range opts.Joins {
			if err := validIdent(j.Relation); err != nil {
				return "", nil, err
			}
			if err := validIdent(j.LocalKey); err != nil {
				return "", nil, err
			}
			if err := validIdent(j.ForeignKey); err != nil {
				return "", nil, err
			}
			for _, c := range j.Columns {
				if err := validIdent(c); err != nil {
					return "", nil, err
				}
				cols = append(cols, fmt.Sprintf("%s.%s AS %q", j.Relation, c, j.Relation+"."+c))
			}
			joins = append(joins, fmt.Sprintf(" LEFT JOIN %s ON %s.%s = %s.%s",
				j.Relation, relation, j.LocalKey, j.Relation, j.ForeignKey))
		}
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + relation + strings.Join(joins, "")

	where, args, err := buildWhere(relation, filter, 1)
	if err != nil {
		return "", nil, err
	}
	query += where

	if opts != nil && opts.Order != nil {
		if err := validIdent(opts.Order.Column); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if opts.Order.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s.%s %s", relation, opts.Order.Column, dir)
	}

	return query, args, nil
}

// buildInsert строит запрос вставки строки с возвратом созданной записи.
func buildInsert(relation string, row Row) (string, []any, error) {
	if err := validIdent(relation); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("empty row for insert into %s", relation)
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)

	for i, col := range sortedKeys(Filter(row)) {
		if err := validIdent(col); err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, row[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		relation, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	return query, args, nil
}

// buildUpdate строит запрос частичного обновления строк по фильтру.
func buildUpdate(relation string, patch Row, filter Filter) (string, []any, error) {
	if err := validIdent(relation); err != nil {
		return "", nil, err
	}
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("empty patch for update of %s", relation)
	}
	if len(filter) == 0 {
		return "", nil, fmt.Errorf("update of %s requires a filter", relation)
	}

	var (
		sets []string
		args []any
	)

	pos := 1
	for _, col := range sortedKeys(Filter(patch)) {
		if err := validIdent(col); err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, pos))
		args = append(args, patch[col])
		pos++
	}

	where, whereArgs, err := buildWhere(relation, filter, pos)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", relation, strings.Join(sets, ", "), where)
	args = append(args, whereArgs...)

	return query, args, nil
}
