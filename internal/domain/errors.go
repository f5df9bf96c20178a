package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrInvalidReservation = errors.New("reserva inválida o inexistente")

	// ErrConflict: colisión de concurrencia optimista. Lo reintenta el motor
	// transaccional; no debe llegar al usuario salvo agotado el presupuesto.
	ErrConflict = errors.New("conflicto con el estado actual")

	// ErrTransient: fallo transitorio; el caller puede reintentar.
	ErrTransient = errors.New("fallo transitorio, reintente")

	// ErrStorageUnavailable: el almacenamiento no responde.
	ErrStorageUnavailable = errors.New("almacenamiento no disponible")
)

// IsRejection indica si el error es un rechazo de dominio terminal:
// reintentar con la misma información no cambia el resultado.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidReservation)
}
