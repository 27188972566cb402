package domain

// MaxAccountNameLength bounds account names.
const MaxAccountNameLength = 12

// AccountName identifies a ledger participant: 1-12 characters of [a-z1-5.],
// not ending in '.'.
type AccountName string

// String returns the string representation of AccountName.
func (n AccountName) String() string {
	return string(n)
}

// IsValid checks length and charset.
func (n AccountName) IsValid() bool {
	if len(n) == 0 || len(n) > MaxAccountNameLength {
		return false
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '1' && c <= '5':
		case c == '.':
		default:
			return false
		}
	}
	return n[len(n)-1] != '.'
}

// Account is a registered participant.
// Corresponds to the accounts table.
type Account struct {
	Name      AccountName // PK
	PublicKey string      // base58 ed25519 public key (empty: unsigned requests only)
	CreatedAt int64       // registration timestamp (ms)
}
