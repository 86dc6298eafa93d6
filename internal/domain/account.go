package domain

// Account is one configured set of exchange credentials bound to the chat
// identities allowed to trade through it. Accounts are built once at startup
// and never mutated.
type Account struct {
	ID             string
	Name           string
	APIKey         string
	Secret         string
	AllowedChatIDs []int64
}

// HasCredentials reports whether the account can be initialized at all.
func (a *Account) HasCredentials() bool {
	return a.APIKey != "" && a.Secret != ""
}

// AllowsChat reports whether messages from chatID may execute on this account.
func (a *Account) AllowsChat(chatID int64) bool {
	for _, id := range a.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
