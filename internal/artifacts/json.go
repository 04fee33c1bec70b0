// internal/artifacts/json.go
package artifacts

import (
	"github.com/tidwall/gjson"

	"droidsweep/internal/core/domain"
)

// jsonValue converts a gjson node into a record value, keeping object key order.
func jsonValue(res gjson.Result) domain.Value {
	switch {
	case res.IsObject():
		return domain.Nested(jsonRecord(res))
	case res.IsArray():
		var items []domain.Value
		res.ForEach(func(_, v gjson.Result) bool {
			items = append(items, jsonValue(v))
			return true
		})
		return domain.List(items...)
	}

	switch res.Type {
	case gjson.String:
		return domain.String(res.Str)
	case gjson.Number:
		return domain.Number(res.Num)
	case gjson.True:
		return domain.Bool(true)
	case gjson.False:
		return domain.Bool(false)
	default:
		return domain.Value{}
	}
}

// jsonRecord converts a JSON object into a record.
func jsonRecord(obj gjson.Result) *domain.Record {
	rec := domain.NewRecord()
	obj.ForEach(func(k, v gjson.Result) bool {
		rec.Set(k.String(), jsonValue(v))
		return true
	})
	return rec
}
