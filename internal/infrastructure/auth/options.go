package auth

import "time"

const (
	Issuer     = "patrimonio.webAPI"
	Audience   = "patrimonio.webAPI"
	passphrase = "patrimonio-chave-autenticacao"
	ClockSkew  = 30 * time.Minute
)

// Options are the token validation parameters. They are built once at
// startup and never modified afterwards.
type Options struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	ClockSkew  time.Duration
}

// DefaultOptions returns the fixed parameters every token is validated against.
func DefaultOptions() Options {
	return Options{
		Issuer:     Issuer,
		Audience:   Audience,
		SigningKey: []byte(passphrase),
		ClockSkew:  ClockSkew,
	}
}
