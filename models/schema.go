package models

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Requirement{},
		&BotSettings{},
		&BotUser{},
		&PromoCode{},
		&UserRequest{},
		&Broadcast{},
	}
}
