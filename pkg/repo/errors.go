package repo

import "fmt"

// DuplicateComponentError is returned when a distribution names a component twice.
type DuplicateComponentError struct {
	Name string
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("duplicate component %q", e.Name)
}

// UnknownComponentError is returned when a component is not part of the distribution.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %q", e.Name)
}
