package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"clinicvoice/models"
	"clinicvoice/utils"

	"go.uber.org/zap"
)

// Generator is the text generation dependency of the extractor.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// IntentExtractor turns a raw caller utterance into a structured intent the
// orchestrator can dispatch on.
type IntentExtractor interface {
	Extract(ctx context.Context, utterance string, stateHint string) (*models.IntentRequest, error)
}

// DefaultIntentExtractor prompts a generative model for a single JSON object
// holding the intent name and its entities.
type DefaultIntentExtractor struct {
	Gen Generator
}

// NewIntentExtractor builds an extractor over the given generator.
func NewIntentExtractor(gen Generator) *DefaultIntentExtractor {
	return &DefaultIntentExtractor{Gen: gen}
}

const extractorPrompt = `Tu es l'analyseur d'intentions d'un standard téléphonique de cabinet médical français.
Analyse l'énoncé du patient et réponds UNIQUEMENT avec un objet JSON:
{"intent": "<intent>", "entities": {"<clé>": "<valeur>"}}

Intentions possibles:
- greet: salutation
- describe_need: le patient décrit son besoin médical (entities: category parmi [generaliste, dermatologie, cardiologie, pediatrie, gynecologie, ophtalmologie], need_text)
- select_practitioner: choix d'un praticien (entities: practitioner_id ou need_text avec le nom)
- request_slots: demande de disponibilités (entities: date en français relatif ou JJ/MM/AAAA, time comme "14h30")
- accept_slot: accepte le créneau proposé (entities: time si un horaire précis est cité)
- decline_slot: refuse le créneau proposé (entities: date ou time si une alternative est citée)
- provide_identity: donne son identité (entities: first_name, last_name, date_of_birth en AAAA-MM-JJ, phone)
- disambiguate_patient: précision d'identité (entities: phone)
- confirm: confirme le récapitulatif
- cancel_appointment: annulation d'un rendez-vous (entities: event_id, first_name, last_name, date)
- current_date: demande la date du jour
- goodbye: fin d'appel

Étape actuelle de la conversation: %s
Énoncé du patient: %q`

// Extract maps one utterance to an intent. When the model output cannot be
// parsed the utterance falls back to describe_need so the conversation keeps
// moving instead of failing the call.
func (e *DefaultIntentExtractor) Extract(ctx context.Context, utterance string, stateHint string) (*models.IntentRequest, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	raw, err := e.Gen.GenerateContent(ctx, fmt.Sprintf(extractorPrompt, stateHint, utterance))
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed: %w", err)
	}

	req, err := parseIntentJSON(raw)
	if err != nil {
		utils.GetLogger().Warn("unparseable intent output, falling back to describe_need",
			zap.String("raw", raw), zap.Error(err))
		return &models.IntentRequest{
			Intent:   models.IntentDescribeNeed,
			Entities: map[string]string{models.EntityNeedText: utterance},
		}, nil
	}
	return req, nil
}

func parseIntentJSON(raw string) (*models.IntentRequest, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a fenced block despite instructions.
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}

	var req models.IntentRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("failed to parse intent JSON: %w", err)
	}
	if req.Intent == "" {
		return nil, fmt.Errorf("intent missing from model output")
	}
	if req.Entities == nil {
		req.Entities = map[string]string{}
	}
	return &req, nil
}
