package llm

import (
	"fmt"
	"strings"
)

// Response markers of the rating prompt, one per line.
const (
	MarkerSeverity            = "SEVERITY:"
	MarkerSeverityDesc        = "SEVERITY_DESC:"
	MarkerExposure            = "EXPOSURE:"
	MarkerExposureDesc        = "EXPOSURE_DESC:"
	MarkerControllability     = "CONTROLLABILITY:"
	MarkerControllabilityDesc = "CONTROLLABILITY_DESC:"
	MarkerHazards             = "HAZARDS:"
	MarkerFailures            = "FAILURES:"
	MarkerRecommendations     = "RECOMMENDATIONS:"
)

// BuildRatingPrompt asks for a hazard analysis in the line-marker format.
// details is optional extra description of the component.
func BuildRatingPrompt(component, details string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("As an ISO 26262 functional safety expert, analyze this automotive component: %q\n", component))
	if details = strings.TrimSpace(details); details != "" {
		sb.WriteString(fmt.Sprintf("CONTEXT: %s\n", details))
	}

	sb.WriteString(`
Provide detailed analysis in this exact format:
SEVERITY: [S0-S3]
SEVERITY_DESC: [detailed explanation]
EXPOSURE: [E0-E4]
EXPOSURE_DESC: [detailed explanation]
CONTROLLABILITY: [C0-C3]
CONTROLLABILITY_DESC: [detailed explanation, without numbers]
HAZARDS: [list 3-5 potential hazards, without numbers]
FAILURES: [list 3-5 failure modes, without numbers]
RECOMMENDATIONS: [list 3-5 ISO 26262 safety recommendations]`)

	return sb.String()
}

// BuildDescriptionPrompt asks for a three-line technical description.
func BuildDescriptionPrompt(component string) string {
	return fmt.Sprintf(`As an automotive expert, provide a concise 3-line technical description focusing on:
1. Primary purpose and role
2. Integration with other systems
3. Safety implications

Component: %q

Format: Return exactly 3 lines, one point per line.`, component)
}

// BuildAutomotivePrompt asks whether free-text input names a vehicle
// component.
func BuildAutomotivePrompt(component string) string {
	return fmt.Sprintf(`Is the following component/system part of an automobile or vehicle: %q?

Return ONLY valid JSON with this exact structure:
{
  "automotive": true,
  "reason": "one sentence explaining the decision"
}`, component)
}
