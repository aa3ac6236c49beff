package session

import (
	goeen_log "github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/records"
	"pos-terminal-session/internal/terminal"
)

// Session bundles the state store and both controllers for one application
// session. Construct it once at startup and hand it to whatever drives the
// terminal (the HTTP surface, a test harness, a CLI).
type Session struct {
	Store      *Store
	Connection *ConnectionController
	Payment    *PaymentFlowController
}

func New(logger *goeen_log.Logger, gw Gateway, factory terminal.Factory, recorder *records.Store, currency string) *Session {
	store := NewStore(logger)
	conn := NewConnectionController(logger, store, gw, factory)
	pay := NewPaymentFlowController(logger, store, gw, conn, recorder, currency)
	return &Session{
		Store:      store,
		Connection: conn,
		Payment:    pay,
	}
}
