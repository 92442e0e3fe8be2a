package upgrade

// Column names every managed table must carry.
const (
	IDField              = "id"
	AppliedUpgradesField = "applied_upgrades"
)

// Row is a single record of a managed table as seen by the runner.
// Fields holds every column except id and applied_upgrades.
type Row struct {
	ID              string
	AppliedUpgrades []string
	Fields          map[string]any
}

// Updates is a partial set of column values for one row. The
// applied_upgrades key carries the new marker list as a []string.
type Updates map[string]any

// Clone returns a deep copy of the row's slice and map.
func (r Row) Clone() Row {
	out := Row{ID: r.ID}
	out.AppliedUpgrades = copyStrings(r.AppliedUpgrades)
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Get returns a field value, including the two reserved columns.
func (r Row) Get(field string) any {
	switch field {
	case IDField:
		return r.ID
	case AppliedUpgradesField:
		return r.AppliedUpgrades
	}
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// Merge returns a copy of r with u overlaid. The receiver is never
// mutated and the id is immutable.
func (r Row) Merge(u Updates) Row {
	out := r.Clone()
	for k, v := range u {
		switch k {
		case IDField:
			continue
		case AppliedUpgradesField:
			out.AppliedUpgrades = toStrings(v)
		default:
			if out.Fields == nil {
				out.Fields = make(map[string]any, len(u))
			}
			out.Fields[k] = v
		}
	}
	return out
}

// Merge returns a new Updates containing u with other laid on top.
func (u Updates) Merge(other Updates) Updates {
	out := make(Updates, len(u)+len(other))
	for k, v := range u {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return copyStrings(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// copyStrings keeps the nil/empty distinction.
func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
