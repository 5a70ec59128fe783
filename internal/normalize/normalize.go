// Package normalize reconciles the field names a language model emits with
// the canonical names the skill layer reads.
package normalize

// aliases maps a drifted key to its canonical name.
var aliases = map[string]string{
	"summary":      "title",
	"startTime":    "start_time",
	"endTime":      "end_time",
	"new_summary":  "new_title",
	"newTitle":     "new_title",
	"newStartTime": "new_start_time",
	"newEndTime":   "new_end_time",
	"oldTimeMin":   "old_time_min",
	"oldKeyword":   "old_keyword",
	"timeMin":      "time_min",
	"timeMax":      "time_max",
	"date_str":     "date",
	"startDate":    "start_date",
	"endDate":      "end_date",
	"filterColumn": "filter_column",
	"filterValue":  "filter_value",
}

// Canonical returns the canonical name for key and whether key was an alias.
func Canonical(key string) (string, bool) {
	c, ok := aliases[key]
	return c, ok
}

// Normalize returns a copy of args with alias keys renamed to their
// canonical names. Keys outside the alias table pass through untouched.
// When an alias and its canonical key are both present the canonical value
// is kept and the alias is dropped. The input map is never modified.
func Normalize(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, isAlias := aliases[k]; !isAlias {
			out[k] = v
		}
	}
	for k, v := range args {
		canonical, isAlias := aliases[k]
		if !isAlias {
			continue
		}
		if _, taken := out[canonical]; taken {
			continue
		}
		out[canonical] = v
	}
	return out
}
