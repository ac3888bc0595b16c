package core

// Verifier checks a supplied admin secret.
type Verifier interface {
	Verify(secret string) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(secret string) bool

// Verify calls f.
func (f VerifierFunc) Verify(secret string) bool { return f(secret) }

const authFailedMessage = "invalid password"

// verify runs outside the event loop, in the client's pump goroutine, so slow
// verifiers (bcrypt) never stall other connections. Command order per client is kept.
func (h *Hub) verify(cmd *Command) {
	if cmd.Kind != CommandAuthenticate {
		return
	}
	cmd.verified = h.verifier != nil && h.verifier.Verify(cmd.Secret)
}

// authenticate grants the privileged role and replies with the room snapshot.
// A failed attempt never downgrades a session that is already privileged.
func (h *Hub) authenticate(c *Client, cmd *Command) bool {
	if !cmd.verified {
		h.log.Warn().Str("conn_id", c.ID).Msg("admin authentication failed")
		h.send(c, &Event{
			Kind: EventAuthResult,
			Auth: &AuthResult{Ref: cmd.Ref, Success: false, Reason: authFailedMessage},
		})
		return false
	}

	if c.role != RolePrivileged {
		c.role = RolePrivileged
		h.router.promote(c)
		h.log.Info().Str("conn_id", c.ID).Msg("admin authenticated")
	}

	h.send(c, &Event{
		Kind: EventAuthResult,
		Auth: &AuthResult{
			Ref:      cmd.Ref,
			Success:  true,
			Token:    h.room.CurrentToken(),
			Messages: h.room.Messages(),
		},
	})
	return true
}
