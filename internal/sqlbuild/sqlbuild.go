// Package sqlbuild собирает фрагменты параметризованных SQL-запросов
// для частичных обновлений.
package sqlbuild

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyUpdate возвращается, если после фильтрации по списку разрешённых
// полей не осталось ни одного присваивания.
var ErrEmptyUpdate = errors.New("no fields to update")

// BuildPartialUpdate строит список присваиваний вида "column = $k" и
// согласованный с ним список значений. В запрос попадают только поля,
// перечисленные в columns; прочие ключи data молча игнорируются.
// Плейсхолдеры нумеруются с $1 подряд в отсортированном порядке имён полей,
// поэтому вызывающая сторона может добавить ключ поиска под номером
// len(values)+1. Значения никогда не подставляются в текст запроса.
func BuildPartialUpdate(data map[string]any, columns map[string]string) ([]string, []any, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyUpdate
	}

	fields := make([]string, 0, len(data))
	for f := range data {
		if _, ok := columns[f]; ok {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, nil, ErrEmptyUpdate
	}
	sort.Strings(fields)

	assignments := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields))
	for i, f := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", columns[f], i+1))
		values = append(values, data[f])
	}

	return assignments, values, nil
}
