package recordsource

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Filters narrows a fetch. Zero values are left out of the query.
type Filters struct {
	StartDate string `rsparam:"start_date" mapstructure:"start_date" json:"start_date,omitempty"`
	EndDate   string `rsparam:"end_date" mapstructure:"end_date" json:"end_date,omitempty"`
	Limit     int    `rsparam:"limit" mapstructure:"limit" json:"limit,omitempty"`
	Offset    int    `rsparam:"offset" mapstructure:"offset" json:"offset,omitempty"`
	// IDs is sent as a single comma separated parameter.
	IDs []string `rsparam:"id" mapstructure:"ids" json:"ids,omitempty"`
}

func buildParams(filters Filters) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(filters)
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("rsparam")
		if key == "" {
			continue
		}

		fv := value.FieldByIndex(field.Index)
		switch fv.Kind() {
		case reflect.Slice:
			ids, ok := fv.Interface().([]string)
			if !ok {
				continue
			}
			cleaned := make([]string, 0, len(ids))
			for _, id := range ids {
				if id = strings.TrimSpace(id); id != "" {
					cleaned = append(cleaned, id)
				}
			}
			if len(cleaned) > 0 {
				q.Set(key, strings.Join(cleaned, ","))
			}
		case reflect.Int:
			if n := fv.Int(); n > 0 {
				q.Set(key, strconv.FormatInt(n, 10))
			}
		default:
			if s := strings.TrimSpace(fmt.Sprintf("%v", fv.Interface())); s != "" {
				q.Set(key, s)
			}
		}
	}

	return q
}
