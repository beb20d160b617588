package domain

import "github.com/ethereum/go-ethereum/common"

// Identity is the opaque key that scopes persisted statistics and the
// in-flight session. It is a wallet address when a wallet is connected, or
// empty for anonymous play. Anonymous statistics are never persisted.
type Identity string

// Anonymous is the zero identity used when no wallet is connected.
const Anonymous Identity = ""

// IsAnonymous reports whether the identity represents anonymous play.
func (id Identity) IsAnonymous() bool {
	return id == Anonymous
}

// NewIdentity validates a wallet address and normalizes it to its EIP-55
// checksum form so the same wallet always maps to the same storage namespace
// regardless of input casing. An empty string yields Anonymous.
func NewIdentity(addr string) (Identity, error) {
	if addr == "" {
		return Anonymous, nil
	}
	if !common.IsHexAddress(addr) {
		return Anonymous, ErrInvalidIdentity
	}
	return Identity(common.HexToAddress(addr).Hex()), nil
}

// IdentityObserver is notified when the current identity changes. Connected
// and switched deliver the new identity; a disconnect delivers Anonymous.
type IdentityObserver interface {
	IdentityChanged(old, new Identity)
}

// IdentitySource exposes the current identity and change notifications. The
// game engine receives one by injection instead of reading ambient state.
type IdentitySource interface {
	Current() Identity
	Watch(obs IdentityObserver) (cancel func())
}
