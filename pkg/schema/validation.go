package schema

import (
	"fmt"
	"strings"
)

// ValidateComponent validates a component record.
func ValidateComponent(c *ComponentRecord) error {
	name := strings.TrimSpace(c.Name)
	if len(name) < ComponentNameMin || len(name) > ComponentNameMax {
		return fmt.Errorf("name must be %d-%d characters", ComponentNameMin, ComponentNameMax)
	}
	if len(c.Category) < CategoryNameMin || len(c.Category) > CategoryNameMax {
		return fmt.Errorf("category must be %d-%d characters", CategoryNameMin, CategoryNameMax)
	}
	if len(c.Description) > ComponentDescriptionMax {
		return fmt.Errorf("description must be at most %d characters", ComponentDescriptionMax)
	}
	if err := c.Rating.Validate(); err != nil {
		return err
	}
	if c.RecordedASIL != "" && !c.RecordedASIL.Valid() {
		return fmt.Errorf("recorded_asil: unknown level %q", c.RecordedASIL)
	}
	for _, d := range Dimensions() {
		if len(c.Reasons.For(d)) > ReasonMax {
			return fmt.Errorf("reasons.%s must be at most %d characters", d, ReasonMax)
		}
	}
	if err := validateList("hazards", c.Hazards); err != nil {
		return err
	}
	if err := validateList("failure_modes", c.FailureModes); err != nil {
		return err
	}
	return validateList("recommendations", c.Recommendations)
}

func validateList(field string, items []string) error {
	if len(items) > ListMax {
		return fmt.Errorf("%s must have at most %d entries", field, ListMax)
	}
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%s[%d] is empty", field, i)
		}
		if len(item) > ListItemMax {
			return fmt.Errorf("%s[%d] must be at most %d characters", field, i, ListItemMax)
		}
	}
	return nil
}
