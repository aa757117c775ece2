package core

import (
	"errors"
	"fmt"
)

// ErrCommandDenied: команда не разрешена для фасада.
var ErrCommandDenied = errors.New("command not allowed")

// Authorizer решает, может ли фасад выполнить команду.
type Authorizer interface {
	Authorize(source, command string) error
}

// AllowlistAuthorizer ограничивает команды по фасаду. Фасад без записи не ограничен;
// фасад с пустым списком не может выполнять команды.
type AllowlistAuthorizer struct {
	allowed map[string]map[string]struct{}
}

// NewAllowlistAuthorizer создает authorizer из map[source][]command.
func NewAllowlistAuthorizer(src map[string][]string) *AllowlistAuthorizer {
	allowed := make(map[string]map[string]struct{}, len(src))
	for source, cmds := range src {
		set := make(map[string]struct{}, len(cmds))
		for _, c := range cmds {
			if c == "" {
				continue
			}
			set[c] = struct{}{}
		}
		allowed[source] = set
	}
	return &AllowlistAuthorizer{allowed: allowed}
}

// Authorize возвращает ErrCommandDenied, если команда не в списке фасада.
// command должен быть каноническим именем из Registry.
func (a *AllowlistAuthorizer) Authorize(source, command string) error {
	if source == "" || command == "" {
		return fmt.Errorf("empty source or command: %w", errInvalidArguments)
	}
	set, limited := a.allowed[source]
	if !limited {
		return nil
	}
	if _, ok := set[command]; !ok {
		return fmt.Errorf("%s via %s: %w", command, source, ErrCommandDenied)
	}
	return nil
}

// Validate проверяет, что все команды списка есть в реестре.
func (a *AllowlistAuthorizer) Validate(r *Registry) error {
	var errs []error
	for source, set := range a.allowed {
		for c := range set {
			cmd, ok := r.Lookup(c)
			if !ok || cmd.Name != c {
				errs = append(errs, fmt.Errorf("%s: %q is not a canonical command name", source, c))
			}
		}
	}
	return errors.Join(errs...)
}
