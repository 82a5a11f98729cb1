package domain

// Employee is a display-only staffing record.
type Employee struct {
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	Projects        []string `json:"projects"`
	Availability    string   `json:"availability"`
}
