package coach

import "time"

// TemplateKind distinguishes the two independent template axes a coach is
// assembled from.
type TemplateKind string

const (
	// TemplateKindPersonality selects tone, voice and communication style.
	TemplateKindPersonality TemplateKind = "personality"
	// TemplateKindMethodology selects the training methodology and
	// programming approach.
	TemplateKindMethodology TemplateKind = "methodology"
)

// SessionRequirements captures what a coach-creator session collected from
// the user before the creation workflow runs: goals, experience level and
// practical constraints. Loaded once per run and read by later workflow
// steps through the run's result store.
type SessionRequirements struct {
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id"`
	Goals       []string          `json:"goals"`
	Experience  string            `json:"experience"`
	DaysPerWeek int               `json:"days_per_week"`
	Equipment   []string          `json:"equipment,omitempty"`
	Constraints []string          `json:"constraints,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Clone returns a deep copy safe for caller mutation.
func (r *SessionRequirements) Clone() *SessionRequirements {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Goals = append([]string(nil), r.Goals...)
	cp.Equipment = append([]string(nil), r.Equipment...)
	cp.Constraints = append([]string(nil), r.Constraints...)
	if r.Preferences != nil {
		cp.Preferences = make(map[string]string, len(r.Preferences))
		for k, v := range r.Preferences {
			cp.Preferences[k] = v
		}
	}
	return &cp
}

// TemplateChoice records one selected template on either axis, together with
// the model's stated rationale for picking it.
type TemplateChoice struct {
	Kind       TemplateKind `json:"kind"`
	TemplateID string       `json:"template_id"`
	Name       string       `json:"name"`
	Rationale  string       `json:"rationale,omitempty"`
}

// Profile is the generated presentation layer of a coach: the name, voice
// and specialties derived from the requirements and the chosen templates.
type Profile struct {
	Name        string   `json:"name"`
	Tagline     string   `json:"tagline"`
	Voice       string   `json:"voice"`
	Specialties []string `json:"specialties,omitempty"`
	Bio         string   `json:"bio,omitempty"`
}

// Config is the assembled, persistable coach configuration produced by the
// creation workflow. It is the unit stored in the ConfigStore.
type Config struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	SessionID    string              `json:"session_id"`
	Profile      Profile             `json:"profile"`
	Personality  TemplateChoice      `json:"personality"`
	Methodology  TemplateChoice      `json:"methodology"`
	Requirements SessionRequirements `json:"requirements"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Clone returns a deep copy safe for caller mutation.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Profile.Specialties = append([]string(nil), c.Profile.Specialties...)
	if req := c.Requirements.Clone(); req != nil {
		cp.Requirements = *req
	}
	return &cp
}

// ValidationResult is the outcome of validating an assembled coach config.
// An invalid result lists the concrete issues; the creation workflow blocks
// persistence while IsValid is false.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues,omitempty"`
}

// Workout is a single logged training activity detected in conversation or
// entered directly.
type Workout struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Activity    string    `json:"activity"`
	DurationMin int       `json:"duration_min,omitempty"`
	Intensity   string    `json:"intensity,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	LoggedAt    time.Time `json:"logged_at"`
}

// Memory is a durable conversational fact about a user (an injury, a
// preference, a standing goal) saved by the conversational agent and
// recalled by search.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy safe for caller mutation.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Tags = append([]string(nil), m.Tags...)
	return &cp
}
