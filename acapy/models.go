package acapy

import (
	"encoding/json"
)

// PresentationExchangeRecord is an ACA-Py present-proof 2.0 exchange record,
// as returned by both the create-request and the records endpoints. Raw
// carries the undecoded record body so it can be re-attached verbatim to an
// out-of-band invitation.
type PresentationExchangeRecord struct {
	PresExID string    `json:"pres_ex_id"`
	ThreadID string    `json:"thread_id,omitempty"`
	State    string    `json:"state,omitempty"`
	Verified string    `json:"verified,omitempty"`
	ByFormat *ByFormat `json:"by_format,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ByFormat holds the per-format views of an exchange's messages.
type ByFormat struct {
	Pres *PresFormats `json:"pres,omitempty"`
}

// PresFormats holds a received presentation keyed by proof format.
type PresFormats struct {
	Indy *IndyProof `json:"indy,omitempty"`
}

// IndyProof is the AnonCreds/Indy view of a received presentation.
type IndyProof struct {
	RequestedProof *IndyRequestedProof `json:"requested_proof,omitempty"`
	Identifiers    []IndyIdentifier    `json:"identifiers,omitempty"`
}

// IndyRequestedProof carries the attribute values disclosed by the holder.
type IndyRequestedProof struct {
	RevealedAttrs     map[string]IndyRevealedAttr `json:"revealed_attrs,omitempty"`
	SelfAttestedAttrs map[string]string           `json:"self_attested_attrs,omitempty"`
}

// IndyRevealedAttr is a single revealed attribute value.
type IndyRevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

// IndyIdentifier identifies the schema, credential definition and (when the
// credential is revocable) revocation registry behind one sub-proof.
type IndyIdentifier struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	RevRegID  string `json:"rev_reg_id,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// RevealedClaims flattens the presentation's revealed and self-attested
// attributes into a single name to raw-value map. Returns nil until a
// presentation has been received.
func (r *PresentationExchangeRecord) RevealedClaims() map[string]string {
	if r == nil || r.ByFormat == nil || r.ByFormat.Pres == nil || r.ByFormat.Pres.Indy == nil {
		return nil
	}
	rp := r.ByFormat.Pres.Indy.RequestedProof
	if rp == nil {
		return nil
	}
	claims := make(map[string]string, len(rp.RevealedAttrs)+len(rp.SelfAttestedAttrs))
	for name, attr := range rp.RevealedAttrs {
		claims[name] = attr.Raw
	}
	for name, v := range rp.SelfAttestedAttrs {
		claims[name] = v
	}
	return claims
}

// RevocationRegistryIDs returns the distinct revocation registries referenced
// by the presented credentials. Credentials issued without revocation support
// carry no registry id and are skipped.
func (r *PresentationExchangeRecord) RevocationRegistryIDs() []string {
	if r == nil || r.ByFormat == nil || r.ByFormat.Pres == nil || r.ByFormat.Pres.Indy == nil {
		return nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, id := range r.ByFormat.Pres.Indy.Identifiers {
		if id.RevRegID == "" || seen[id.RevRegID] {
			continue
		}
		seen[id.RevRegID] = true
		ids = append(ids, id.RevRegID)
	}
	return ids
}

// WalletDID is a DID held by the agent's wallet.
type WalletDID struct {
	DID     string `json:"did"`
	VerKey  string `json:"verkey,omitempty"`
	Posture string `json:"posture,omitempty"`
	Method  string `json:"method,omitempty"`
	KeyType string `json:"key_type,omitempty"`
}

// Invitation is the agent's reply to an out-of-band create-invitation call.
// InvitationURL is what gets rendered to the end user (QR code or deep
// link); Invitation is the raw invitation message.
type Invitation struct {
	InviMsgID     string          `json:"invi_msg_id,omitempty"`
	OOBID         string          `json:"oob_id,omitempty"`
	State         string          `json:"state,omitempty"`
	InvitationURL string          `json:"invitation_url"`
	Invitation    json.RawMessage `json:"invitation,omitempty"`
}

// revocationReply mirrors the issued/indy_recs response. A registry with no
// revocations yet omits the whole rev_reg_delta path, which decodes to the
// zero value here.
type revocationReply struct {
	RevRegDelta struct {
		Value struct {
			Revoked []int64 `json:"revoked"`
		} `json:"value"`
	} `json:"rev_reg_delta"`
}

// walletDIDListReply mirrors GET /wallet/did.
type walletDIDListReply struct {
	Results []WalletDID `json:"results"`
}

// walletDIDReply mirrors GET /wallet/did/public.
type walletDIDReply struct {
	Result *WalletDID `json:"result"`
}

// tokenReply mirrors POST /multitenancy/wallet/{id}/token.
type tokenReply struct {
	Token string `json:"token"`
}
