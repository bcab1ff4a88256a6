package clickhouse

import (
	"fmt"
	"strings"

	"funnelytics/model"
)

// likeEscaper escapes LIKE wildcards in literal values.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildFilterConditions compiles validated filters into an AND-joined SQL
// fragment with positional parameters. Filters failing validation are omitted
// and their fields returned for logging; they never abort the query.
//
// Field names are interpolated only after the allow-list check; every literal
// value is bound as a parameter.
func buildFilterConditions(filters []model.Filter) (string, []interface{}, []string) {
	var conditions []string
	var params []interface{}
	var dropped []string

	for i := range filters {
		filter := &filters[i]
		if !filter.IsValid() {
			dropped = append(dropped, filter.Field)
			continue
		}

		switch filter.Operator {
		case model.OperatorEquals:
			conditions = append(conditions, fmt.Sprintf("%s = ?", filter.Field))
			params = append(params, filter.Value)
		case model.OperatorNotEquals:
			conditions = append(conditions, fmt.Sprintf("%s != ?", filter.Field))
			params = append(params, filter.Value)
		case model.OperatorContains:
			conditions = append(conditions, fmt.Sprintf("%s LIKE ?", filter.Field))
			params = append(params, "%"+likeEscaper.Replace(filter.Value)+"%")
		case model.OperatorIn:
			conditions = append(conditions, fmt.Sprintf("%s IN ?", filter.Field))
			params = append(params, filter.Values)
		case model.OperatorNotIn:
			conditions = append(conditions, fmt.Sprintf("%s NOT IN ?", filter.Field))
			params = append(params, filter.Values)
		}
	}

	if len(conditions) == 0 {
		return "", nil, dropped
	}
	return " AND " + strings.Join(conditions, " AND "), params, dropped
}
