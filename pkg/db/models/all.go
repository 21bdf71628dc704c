package models

// All lists every persisted model, in dependency order, for AutoMigrate in tests
// and dev bootstrapping.
func All() []any {
	return []any{
		&User{},
		&LedgerEntry{},
		&Listing{},
		&Offer{},
		&CounterOffer{},
		&Order{},
		&DriverInvitation{},
		&PaymentTransaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
