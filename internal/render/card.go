package render

import (
	"strconv"
	"strings"

	"github.com/ashureev/hr-resource-chat/internal/domain"
)

// Field labels of an employee card, in display order.
const (
	LabelName         = "Name"
	LabelSkills       = "Skills"
	LabelExperience   = "Experience"
	LabelProjects     = "Projects"
	LabelAvailability = "Availability"
)

// CardField is one labeled value on an employee card.
type CardField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is the display form of an employee record.
type Card struct {
	Title  string      `json:"title"`
	Fields []CardField `json:"fields"`
}

// EmployeeCard lays out e as a fixed set of labeled fields. No validation
// is done; missing values render empty.
func EmployeeCard(e domain.Employee) Card {
	return Card{
		Title: e.Name,
		Fields: []CardField{
			{Label: LabelName, Value: e.Name},
			{Label: LabelSkills, Value: strings.Join(e.Skills, ", ")},
			{Label: LabelExperience, Value: strconv.FormatFloat(e.ExperienceYears, 'f', -1, 64) + " years"},
			{Label: LabelProjects, Value: strings.Join(e.Projects, ", ")},
			{Label: LabelAvailability, Value: e.Availability},
		},
	}
}

// Value returns the value of the field with the given label.
func (c Card) Value(label string) (string, bool) {
	for _, f := range c.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}
