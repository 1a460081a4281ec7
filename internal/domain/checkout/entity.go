// internal/domain/checkout/entity.go
package checkout

// Action says how provisioning satisfied a checkout.
type Action string

const (
	ActionExisting Action = "existing"
	ActionUpdated  Action = "updated"
	ActionCreated  Action = "created"
)
