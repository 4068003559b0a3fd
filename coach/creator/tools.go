package creator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fitforge/coachkit/coach"
	"github.com/fitforge/coachkit/tool"
)

// Semantic result-store keys. Tools write under these stable names so later
// workflow steps and the outcome assembly read by meaning, not by tool id.
const (
	keyRequirements = "requirements"
	keyPersonality  = "personality"
	keyMethodology  = "methodology"
	keyProfile      = "profile"
	keyConfig       = "config"
	keyValidation   = "validation"
	keySaved        = "saved"
)

// Workflow tool names.
const (
	toolLoadRequirements  = "load_session_requirements"
	toolSelectPersonality = "select_personality_template"
	toolSelectMethodology = "select_methodology_template"
	toolGenerateProfile   = "generate_coach_profile"
	toolAssembleConfig    = "assemble_coach_config"
	toolValidateConfig    = "validate_coach_config"
	toolNormalizeConfig   = "normalize_coach_config"
	toolSaveConfig        = "save_coach_config"
)

// SaveReceipt is the output of the persist step.
type SaveReceipt struct {
	ConfigID string `json:"config_id"`
	Saved    bool   `json:"saved"`
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// registerTools builds the workflow tool set bound to this creator's stores
// and declares result aliases plus the one parallel-safe pair.
func (c *Creator) registerTools(reg *tool.Registry) {
	reg.RegisterAll(
		c.loadRequirementsTool(),
		c.selectTemplateTool(toolSelectPersonality, coach.TemplateKindPersonality, personalityTemplates),
		c.selectTemplateTool(toolSelectMethodology, coach.TemplateKindMethodology, methodologyTemplates),
		c.generateProfileTool(),
		c.assembleConfigTool(),
		c.validateConfigTool(),
		c.normalizeConfigTool(),
		c.saveConfigTool(),
	)

	reg.Alias(toolLoadRequirements, keyRequirements)
	reg.Alias(toolSelectPersonality, keyPersonality)
	reg.Alias(toolSelectMethodology, keyMethodology)
	reg.Alias(toolGenerateProfile, keyProfile)
	reg.Alias(toolAssembleConfig, keyConfig)
	reg.Alias(toolValidateConfig, keyValidation)
	reg.Alias(toolSaveConfig, keySaved)

	// Template selection on the two axes has no data dependency within a
	// turn and writes disjoint result keys.
	reg.MarkParallelSafe(toolSelectPersonality, toolSelectMethodology)
}

func (c *Creator) loadRequirementsTool() tool.Tool {
	return tool.NewFunctionTool(
		toolLoadRequirements,
		"Load the requirements the coach-creator session collected from the user: goals, experience level, schedule and constraints. Call this first.",
		emptyObjectSchema(),
		func(tc *tool.Context, _ map[string]any) (any, error) {
			req, err := c.sessions.Requirements(tc.Context(), tc.SessionID())
			if err != nil {
				return nil, fmt.Errorf("load requirements for session %s: %w", tc.SessionID(), err)
			}
			return req, nil
		},
	)
}

func (c *Creator) selectTemplateTool(name string, kind coach.TemplateKind, catalog []Template) tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{
				"type":        "string",
				"description": "ID of the chosen template",
				"enum":        catalogIDs(catalog),
			},
			"rationale": map[string]any{
				"type":        "string",
				"description": "One sentence on why this template fits the requirements",
			},
		},
		"required": []string{"template_id"},
	}

	description := fmt.Sprintf(
		"Select the %s template that best fits the loaded requirements. Available: %s. May run in the same turn as the other template selection.",
		string(kind), catalogSummary(catalog),
	)

	return tool.NewFunctionTool(name, description, schema, func(tc *tool.Context, args map[string]any) (any, error) {
		id, _ := args["template_id"].(string)
		rationale, _ := args["rationale"].(string)
		t, ok := findTemplate(catalog, id)
		if !ok {
			return nil, fmt.Errorf("unknown %s template %q, pick one of %s", string(kind), id, strings.Join(catalogIDs(catalog), ", "))
		}
		return templateChoice(kind, t, rationale), nil
	})
}

func (c *Creator) generateProfileTool() tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "description": "Coach display name"},
			"tagline":     map[string]any{"type": "string", "description": "Short motto shown under the name"},
			"voice":       map[string]any{"type": "string", "description": "A paragraph describing how the coach speaks"},
			"specialties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"bio":         map[string]any{"type": "string", "description": "Short background story"},
		},
		"required": []string{"name", "tagline", "voice"},
	}

	return tool.NewFunctionTool(
		toolGenerateProfile,
		"Record the generated coach profile (name, tagline, voice, specialties, bio) derived from the requirements and the selected templates.",
		schema,
		func(_ *tool.Context, args map[string]any) (any, error) {
			profile := coach.Profile{
				Name:    stringArg(args, "name"),
				Tagline: stringArg(args, "tagline"),
				Voice:   stringArg(args, "voice"),
				Bio:     stringArg(args, "bio"),
			}
			if raw, ok := args["specialties"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						profile.Specialties = append(profile.Specialties, s)
					}
				}
			}
			return profile, nil
		},
	)
}

func (c *Creator) assembleConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		toolAssembleConfig,
		"Assemble the coach configuration from the requirements, the two selected templates and the generated profile. Requires all previous steps.",
		emptyObjectSchema(),
		func(tc *tool.Context, _ map[string]any) (any, error) {
			req, ok := resultAs[*coach.SessionRequirements](tc, keyRequirements)
			if !ok {
				return nil, fmt.Errorf("session requirements not loaded yet, call %s first", toolLoadRequirements)
			}
			personality, ok := resultAs[coach.TemplateChoice](tc, keyPersonality)
			if !ok {
				return nil, fmt.Errorf("no personality template selected yet, call %s first", toolSelectPersonality)
			}
			methodology, ok := resultAs[coach.TemplateChoice](tc, keyMethodology)
			if !ok {
				return nil, fmt.Errorf("no methodology template selected yet, call %s first", toolSelectMethodology)
			}
			profile, ok := resultAs[coach.Profile](tc, keyProfile)
			if !ok {
				return nil, fmt.Errorf("no coach profile generated yet, call %s first", toolGenerateProfile)
			}

			return &coach.Config{
				UserID:       req.UserID,
				SessionID:    tc.SessionID(),
				Profile:      profile,
				Personality:  personality,
				Methodology:  methodology,
				Requirements: *req,
			}, nil
		},
	)
}

func (c *Creator) validateConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		toolValidateConfig,
		"Validate the assembled coach configuration. Returns is_valid plus the list of issues found. Must pass before saving.",
		emptyObjectSchema(),
		func(tc *tool.Context, _ map[string]any) (any, error) {
			cfg, ok := resultAs[*coach.Config](tc, keyConfig)
			if !ok {
				return nil, fmt.Errorf("no assembled config to validate, call %s first", toolAssembleConfig)
			}
			return validateConfig(cfg), nil
		},
	)
}

func (c *Creator) normalizeConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		toolNormalizeConfig,
		"Repair fixable issues in the assembled config (whitespace, missing defaults, out-of-range schedule values), then report what changed. Re-validate afterwards.",
		emptyObjectSchema(),
		func(tc *tool.Context, _ map[string]any) (any, error) {
			cfg, ok := resultAs[*coach.Config](tc, keyConfig)
			if !ok {
				return nil, fmt.Errorf("no assembled config to normalize, call %s first", toolAssembleConfig)
			}
			normalized, changes := normalizeConfig(cfg)
			// The repaired config replaces the assembled one; this tool's own
			// output only reports the applied changes.
			tc.Results().Put(keyConfig, normalized)
			return map[string]any{"changes": changes}, nil
		},
	)
}

func (c *Creator) saveConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		toolSaveConfig,
		"Persist the validated coach configuration. Only call after validation succeeded.",
		emptyObjectSchema(),
		func(tc *tool.Context, _ map[string]any) (any, error) {
			cfg, ok := resultAs[*coach.Config](tc, keyConfig)
			if !ok {
				return nil, fmt.Errorf("no assembled config to save, call %s first", toolAssembleConfig)
			}
			cp := cfg.Clone()
			cp.ID = uuid.NewString()
			cp.CreatedAt = time.Now().UTC()
			if err := c.configs.Save(tc.Context(), cp); err != nil {
				return nil, fmt.Errorf("save coach config: %w", err)
			}
			return SaveReceipt{ConfigID: cp.ID, Saved: true}, nil
		},
	)
}

// validateConfig applies the structural checks a persistable coach config
// must pass.
func validateConfig(cfg *coach.Config) coach.ValidationResult {
	var issues []string
	if strings.TrimSpace(cfg.Profile.Name) == "" {
		issues = append(issues, "profile name is empty")
	}
	if strings.TrimSpace(cfg.Profile.Voice) == "" {
		issues = append(issues, "profile voice is empty")
	}
	if cfg.Personality.TemplateID == "" {
		issues = append(issues, "no personality template selected")
	}
	if cfg.Methodology.TemplateID == "" {
		issues = append(issues, "no methodology template selected")
	}
	if cfg.UserID == "" {
		issues = append(issues, "config has no owning user")
	}
	if len(cfg.Requirements.Goals) == 0 {
		issues = append(issues, "requirements list no goals")
	}
	if cfg.Requirements.DaysPerWeek < 1 || cfg.Requirements.DaysPerWeek > 7 {
		issues = append(issues, fmt.Sprintf("days_per_week %d outside 1..7", cfg.Requirements.DaysPerWeek))
	}
	return coach.ValidationResult{IsValid: len(issues) == 0, Issues: issues}
}

// normalizeConfig repairs what can be repaired mechanically and reports the
// applied changes. Issues it cannot fix (missing goals, missing templates)
// are left for the model to resolve.
func normalizeConfig(cfg *coach.Config) (*coach.Config, []string) {
	out := cfg.Clone()
	var changes []string

	if trimmed := strings.TrimSpace(out.Profile.Name); trimmed != out.Profile.Name {
		out.Profile.Name = trimmed
		changes = append(changes, "trimmed profile name")
	}
	if trimmed := strings.TrimSpace(out.Profile.Tagline); trimmed != out.Profile.Tagline {
		out.Profile.Tagline = trimmed
		changes = append(changes, "trimmed profile tagline")
	}
	if out.Requirements.DaysPerWeek < 1 {
		out.Requirements.DaysPerWeek = 3
		changes = append(changes, "defaulted days_per_week to 3")
	}
	if out.Requirements.DaysPerWeek > 7 {
		out.Requirements.DaysPerWeek = 7
		changes = append(changes, "clamped days_per_week to 7")
	}
	if out.Requirements.Experience == "" {
		out.Requirements.Experience = "beginner"
		changes = append(changes, "defaulted experience to beginner")
	}
	return out, changes
}

func resultAs[T any](tc *tool.Context, key string) (T, bool) {
	var zero T
	v, ok := tc.ToolResult(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
