package domain

import "fmt"

// SecureCommInfo holds the encryption pubkeys the two parties use for
// off-chain messages. It is either PartialCommInfo or LoadedCommInfo.
type SecureCommInfo interface {
	IsLoaded() bool
	commInfo()
}

// PartialCommInfo is missing at least one pubkey.
type PartialCommInfo struct {
	InitiatorPubkey *string `json:"initiator_pubkey,omitempty"`
	ResponderPubkey *string `json:"responder_pubkey,omitempty"`
}

// LoadedCommInfo has both pubkeys and no longer changes.
type LoadedCommInfo struct {
	InitiatorPubkey string `json:"initiator_pubkey"`
	ResponderPubkey string `json:"responder_pubkey"`
}

func (PartialCommInfo) IsLoaded() bool { return false }
func (PartialCommInfo) commInfo() {}
func (LoadedCommInfo) IsLoaded() bool { return true }
func (LoadedCommInfo) commInfo() {}

func promoteCommInfo(c PartialCommInfo) SecureCommInfo {
	if c.InitiatorPubkey == nil || c.ResponderPubkey == nil {
		return c
	}
	return LoadedCommInfo{
		InitiatorPubkey: *c.InitiatorPubkey,
		ResponderPubkey: *c.ResponderPubkey,
	}
}

func asPartialCommInfo(c SecureCommInfo) (PartialCommInfo, error) {
	switch v := c.(type) {
	case nil:
		return PartialCommInfo{}, nil
	case PartialCommInfo:
		return v, nil
	default:
		return PartialCommInfo{}, fmt.Errorf("domain: comm info: %w", ErrAlreadyLoaded)
	}
}

// SetInitiatorPubkey records the initiator's pubkey.
func SetInitiatorPubkey(c SecureCommInfo, key string) (SecureCommInfo, error) {
	p, err := asPartialCommInfo(c)
	if err != nil {
		return c, err
	}
	p.InitiatorPubkey = &key
	return promoteCommInfo(p), nil
}

// SetResponderPubkey records the responder's pubkey.
func SetResponderPubkey(c SecureCommInfo, key string) (SecureCommInfo, error) {
	p, err := asPartialCommInfo(c)
	if err != nil {
		return c, err
	}
	p.ResponderPubkey = &key
	return promoteCommInfo(p), nil
}

// HasResponderPubkey reports whether the responder's pubkey is known.
func HasResponderPubkey(c SecureCommInfo) bool {
	switch v := c.(type) {
	case LoadedCommInfo:
		return true
	case PartialCommInfo:
		return v.ResponderPubkey != nil
	default:
		return false
	}
}
