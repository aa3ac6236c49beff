package terminal

import "time"

// Reader describes a physical or network-attached card terminal. Immutable
// once discovered; a disconnected reader is discarded and re-discovered.
type Reader struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	IPAddress    string    `json:"ip_address"`
	Version      string    `json:"version"`
	Simulated    bool      `json:"simulated"`
	LastSeen     time.Time `json:"last_seen"`
	LocationID   string    `json:"location_id"`
}

// PaymentIntent lifecycle statuses as reported by the backend. The client
// never invents statuses; it only carries what the server or SDK returned.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// PaymentIntent is a read-only snapshot of the server-issued payment record.
// Each flow step replaces the snapshot wholesale; nothing mutates it in place.
type PaymentIntent struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"` // integer minor units
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	ClientSecret  string            `json:"client_secret"`
	CaptureMethod string            `json:"capture_method"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Clone returns an independent copy, including the metadata map.
func (p *PaymentIntent) Clone() *PaymentIntent {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
