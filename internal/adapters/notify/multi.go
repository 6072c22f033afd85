package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/roundbot/internal/domain"
	"github.com/alejandrodnm/roundbot/internal/ports"
)

// Multi reenvía cada notificación a todos los notifiers.
// Un fallo no impide el envío a los demás; los errores se unen.
type Multi struct {
	notifiers []ports.Notifier
}

// NewMulti crea un Multi ignorando los nil.
func NewMulti(notifiers ...ports.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len devuelve la cantidad de destinos.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify implementa ports.Notifier.
func (m *Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, nt := range m.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
