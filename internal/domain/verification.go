package domain

// VerificationMode tells how a transaction leaves the pending state.
type VerificationMode string

// Verification modes.
const (
	VerificationOTP      VerificationMode = "otp"
	VerificationCallback VerificationMode = "callback"
	VerificationNone     VerificationMode = "none"
)

// MetadataChannel is the metadata key naming the funding channel.
const MetadataChannel = "channel"

// VerificationPolicy decides the verification mode of a transaction.
type VerificationPolicy struct {
	Modes                   map[TransactionType]VerificationMode
	CallbackFundingChannels []string
}

// ModeFor returns the verification mode for a transaction of type t with the given metadata.
//
// Funding through a callback channel is always completed by the provider callback.
func (p VerificationPolicy) ModeFor(t TransactionType, metadata map[string]string) VerificationMode {
	if t == TypeFunding {
		channel := metadata[MetadataChannel]
		for _, c := range p.CallbackFundingChannels {
			if channel != "" && c == channel {
				return VerificationCallback
			}
		}
	}

	if m, ok := p.Modes[t]; ok && m != "" {
		return m
	}

	return VerificationOTP
}

// Funding channels carried in the MetadataChannel key.
const (
	// ChannelCard funding is collected from a card through the card issuer.
	ChannelCard = "card"
	// ChannelGateway funding is completed by the payment gateway callback.
	ChannelGateway = "gateway"
)
