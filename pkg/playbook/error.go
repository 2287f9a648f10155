package playbook

// NotFoundError is returned when an entry doesn't exist in the store.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	if e.Name == "" {
		return "entry not found"
	}

	return "entry not found: " + e.Name
}
