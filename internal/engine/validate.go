package engine

import (
	"fmt"
	"maps"
	"slices"

	"shootboard/internal/domain"
)

// normalizeInsert checks a new record and fills the task defaults.
func normalizeInsert(k domain.Kind, rec domain.Record) (domain.Record, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", k)
	}
	out := rec.Clone()
	if out == nil {
		out = domain.Record{}
	}
	if err := rejectIdentity(k, out); err != nil {
		return nil, err
	}
	for _, col := range domain.RequiredOnInsert(k) {
		if _, ok := out[col]; !ok {
			return nil, domain.FieldError{Kind: k, Field: col, Msg: "is required"}
		}
	}
	if err := domain.ValidateFields(k, out); err != nil {
		return nil, err
	}
	if k == domain.KindTasks {
		c := domain.Category(out["category"])
		if out["status"] == "" {
			out["status"] = c.DefaultStatus()
		}
		if !c.AllowsStatus(out["status"]) {
			return nil, statusError(c, out["status"])
		}
		out["index_label"] = c.IndexLabel(out["index_label"])
	}
	return out, nil
}

// changedFields validates an update against the Store's copy and returns only
// the fields whose value differs.
func changedFields(k domain.Kind, current, fields domain.Record) (domain.Record, error) {
	if err := rejectIdentity(k, fields); err != nil {
		return nil, err
	}
	if err := domain.ValidateFields(k, fields); err != nil {
		return nil, err
	}
	if k == domain.KindTasks {
		c := domain.Category(current["category"])
		if v, ok := fields["category"]; ok && domain.Category(v) != c {
			return nil, domain.FieldError{Kind: k, Field: "category", Msg: "cannot change after creation"}
		}
		if v, ok := fields["status"]; ok && !c.AllowsStatus(v) {
			return nil, statusError(c, v)
		}
	}
	out := domain.Record{}
	for _, col := range slices.Sorted(maps.Keys(fields)) {
		if fields[col] != current[col] {
			out[col] = fields[col]
		}
	}
	return out, nil
}

func rejectIdentity(k domain.Kind, rec domain.Record) error {
	for _, col := range []string{"id", "created_at"} {
		if _, ok := rec[col]; ok {
			return domain.FieldError{Kind: k, Field: col, Msg: "is assigned by the store"}
		}
	}
	return nil
}

func statusError(c domain.Category, status string) error {
	return domain.FieldError{
		Kind:  domain.KindTasks,
		Field: "status",
		Msg:   fmt.Sprintf("%q is not allowed for %s (want one of %v)", status, c, c.Statuses()),
	}
}
