package security

import "fmt"

// Declarator holds the single scheme that covers the whole API surface.
// Declare runs at startup; afterwards the scheme is read concurrently.
type Declarator struct {
	scheme   Scheme
	declared bool
}

// Declare registers s. Only one scheme may be declared.
func (d *Declarator) Declare(s Scheme) error {
	if d.declared {
		return fmt.Errorf("%w: %q", ErrSchemeAlreadyDeclared, d.scheme.ID)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	d.scheme = s
	d.declared = true
	return nil
}

// Scheme returns the declared scheme.
func (d *Declarator) Scheme() (Scheme, bool) {
	return d.scheme, d.declared
}
