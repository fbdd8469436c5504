package ports

// SignatureRecoverer recovers the address that signed a text message
type SignatureRecoverer interface {
	RecoverAddress(message, signature string) (string, error)
}
