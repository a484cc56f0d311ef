package services

// RedactPhones removes every "phone" entry from a decoded JSON value, at any
// depth. The payload is modified in place and returned.
func RedactPhones(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		delete(t, "phone")
		for _, child := range t {
			RedactPhones(child)
		}
	case []interface{}:
		for _, item := range t {
			RedactPhones(item)
		}
	}
	return v
}
