package domain

// Record is one row of an arbitrary collection, keyed by field name.
// Values carry whatever the storage driver produced; the registry's
// field types, not Go types, are authoritative for interpretation.
type Record map[string]interface{}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project returns a copy restricted to the given fields. An empty or
// nil field list returns the record unchanged.
func (r Record) Project(fields []string) Record {
	if len(fields) == 0 {
		return r
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Delta maps field names to their [old, new] value pair for one revision
type Delta map[string][]interface{}

// Apply writes the new values of the delta onto a record. A nil new
// value sets the field to null; delete mutations are replayed by the
// tracker from the stored snapshot, not from the delta.
func (d Delta) Apply(rec Record) Record {
	out := rec.Clone()
	for field, pair := range d {
		if len(pair) != 2 {
			continue
		}
		out[field] = pair[1]
	}
	return out
}
