package funnel

// validTransitions contains the permitted non-recovery transitions in the FSM.
var validTransitions = map[State][]State{
	StateAwaitingLanguage: {
		StateWelcome,
	},
	StateWelcome: {
		StateVerificationIntro,
		StateAwaitingUID,
	},
	StateVerificationIntro: {
		StateAwaitingUID,
	},
	StateAwaitingUID: {
		StateAwaitingDeposit,
		StateVerificationIntro,
	},
	StateAwaitingDeposit: {
		StateFullyVerified,
		StateAwaitingUID,
	},
	StateFullyVerified: {
		StateSelectingMarketType,
	},
	StateSelectingMarketType: {
		StateSelectingPair,
	},
	StateSelectingPair: {
		StateSelectingTime,
		StateSelectingMarketType,
	},
	StateSelectingTime: {
		StateAwaitingConfirmation,
		StateAwaitingCustomTime,
		StateSelectingPair,
	},
	StateAwaitingCustomTime: {
		StateAwaitingConfirmation,
		StateSelectingTime,
	},
	StateAwaitingConfirmation: {
		StateSignalDelivered,
		StateSelectingTime,
	},
	StateSignalDelivered: {
		StateSelectingMarketType,
	},
}

// requiredScratch lists the Scratch fields a session must carry to enter a
// state. States absent from the map have no requirements.
var requiredScratch = map[State][]ScratchField{
	StateAwaitingDeposit:      {FieldPendingUID},
	StateSelectingTime:        {FieldMarketType, FieldAsset},
	StateAwaitingCustomTime:   {FieldMarketType, FieldAsset},
	StateAwaitingConfirmation: {FieldMarketType, FieldAsset, FieldExpiration},
	StateSignalDelivered:      {FieldMarketType, FieldAsset, FieldExpiration},
	StateSelectingPair:        {FieldMarketType},
}

// ScratchField names one field of the Scratch struct for contract checks.
type ScratchField string

const (
	FieldMarketType ScratchField = "market_type"
	FieldAsset      ScratchField = "asset"
	FieldExpiration ScratchField = "expiration"
	FieldPendingUID ScratchField = "pending_uid"
)

// IsTransitionAllowed reports whether moving from one state to another is
// valid. The language picker and the verified main menu are always reachable
// so /start and "back to menu" work from any point of the funnel.
func IsTransitionAllowed(from, to State) bool {
	if to == StateFullyVerified || to == StateAwaitingLanguage {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}

// MissingScratch returns the fields required by the target state that the
// scratch does not carry yet.
func MissingScratch(to State, scratch Scratch) []ScratchField {
	var missing []ScratchField
	for _, field := range requiredScratch[to] {
		if !scratchHas(scratch, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func scratchHas(scratch Scratch, field ScratchField) bool {
	switch field {
	case FieldMarketType:
		return scratch.MarketType != ""
	case FieldAsset:
		return scratch.Asset != ""
	case FieldExpiration:
		return scratch.Expiration != ""
	case FieldPendingUID:
		return scratch.PendingUID != ""
	default:
		return false
	}
}
