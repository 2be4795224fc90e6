package schema

var severityDescriptions = [...]string{
	"No injuries - No harm to persons",
	"Light to moderate injuries - Minor harm to persons with full recovery expected",
	"Severe to life-threatening injuries - Significant harm with possible long-term effects",
	"Life-threatening to fatal injuries - Critical safety impact with potential fatalities",
}

var exposureDescriptions = [...]string{
	"Very unlikely - Rare operational situations (< 0.001%)",
	"Unlikely - Infrequent operational situations (0.001% to 0.1%)",
	"Medium probability - Common operational situations (0.1% to 1%)",
	"High probability - Frequent operational situations (1% to 10%)",
	"Highly likely - Very frequent operational situations (> 10%)",
}

var controllabilityDescriptions = [...]string{
	"Controllable in general - Easy to control or avoid harm",
	"Simply controllable - Normal driver response is sufficient",
	"Normally controllable - Most drivers can control the situation",
	"Difficult to control or uncontrollable - High skill required or impossible to avoid",
}

// Description returns the ISO 26262 meaning of the level.
func (s Severity) Description() string {
	if !s.Valid() {
		return ""
	}
	return severityDescriptions[s]
}

func (e Exposure) Description() string {
	if !e.Valid() {
		return ""
	}
	return exposureDescriptions[e]
}

func (c Controllability) Description() string {
	if !c.Valid() {
		return ""
	}
	return controllabilityDescriptions[c]
}

// DefaultReasons fills each dimension with its level description.
func DefaultReasons(r Rating) Reasons {
	return Reasons{
		Severity:        r.Severity.Description(),
		Exposure:        r.Exposure.Description(),
		Controllability: r.Controllability.Description(),
	}
}
