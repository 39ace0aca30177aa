package roster

// StudentRecord is one enrolled student. The JSON keys match the roster file
// written by earlier versions of the tool.
type StudentRecord struct {
	Name      string `json:"Student Name"`
	PhotoPath string `json:"Photo Path"`
}

// Key returns the normalized identity used for uniqueness checks.
func (r StudentRecord) Key() string {
	return NormalizeName(r.Name)
}
