package core

import "strings"

// Message renders the canonical text the wallet signs.
// The output must stay byte-identical across server and client; any change
// here invalidates every outstanding signature.
func (c *Challenge) Message() string {
	var b strings.Builder

	b.WriteString(c.Domain)
	b.WriteString(" wants you to sign in with your Ethereum account:\n")
	b.WriteString(c.Address)
	b.WriteString("\n\n")
	b.WriteString(c.Statement)
	b.WriteString("\n\n")
	b.WriteString("URI: " + c.URI + "\n")
	b.WriteString("Version: " + c.Version + "\n")
	b.WriteString("Chain ID: " + c.ChainID + "\n")
	b.WriteString("Nonce: " + c.Nonce + "\n")
	b.WriteString("Issued At: " + c.IssuedAt)

	if c.ExpirationTime != "" {
		b.WriteString("\nExpiration Time: " + c.ExpirationTime)
	}
	if c.InvalidBefore != "" {
		b.WriteString("\nNot Before: " + c.InvalidBefore)
	}

	return b.String()
}
