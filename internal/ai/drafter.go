// Package ai provides the optional reply-drafting assistant. Its output is
// advisory only: drafts are shown to staff for editing and are never sent or
// used for routing decisions.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/jamesgurung/school-helpdesk/internal/models"
	"github.com/jamesgurung/school-helpdesk/internal/utils"
)

const defaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

// Drafter generates suggested replies via Amazon Bedrock.
type Drafter struct {
	client  *bedrockruntime.Client
	modelID string
	school  string
}

// New creates a drafter. region and modelID fall back to sensible defaults.
func New(ctx context.Context, region, modelID, schoolName string) (*Drafter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if modelID == "" {
		modelID = defaultModelID
	}
	return &Drafter{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
		school:  schoolName,
	}, nil
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// DraftReply suggests a response to the parent's latest message, given the
// conversation so far. The result is normalized plain text for the console
// editor.
func (d *Drafter) DraftReply(ctx context.Context, ticket *models.Ticket, history []models.Message) (string, error) {
	system := fmt.Sprintf(
		"You draft replies from %s staff to parents. Be warm, concise, and factual. "+
			"Never invent school policy or commitments. Write plain text, no signature.",
		d.school)

	var convo strings.Builder
	fmt.Fprintf(&convo, "Ticket: %s\n\n", ticket.Title)
	for _, msg := range history {
		if msg.IsPrivate {
			continue
		}
		role := "Parent"
		if msg.IsEmployee {
			role = "Staff"
		}
		fmt.Fprintf(&convo, "%s (%s): %s\n\n", msg.AuthorName, role, msg.Content)
	}
	convo.WriteString("Draft the next staff reply.")

	return d.invoke(ctx, system, convo.String())
}

// SuggestStudent guesses which child an ambiguous enquiry concerns. The
// answer is a hint for the staff picker only; it must never resolve a ticket
// by itself. A nil result means the model gave no usable answer.
func (d *Drafter) SuggestStudent(ctx context.Context, candidates []models.Student, message string) (*models.Student, error) {
	if len(candidates) < 2 {
		return nil, nil
	}
	system := fmt.Sprintf(
		"You help %s staff match a parent's email to one of their children. "+
			"Answer with the child's full name exactly as listed, or NONE if unsure.",
		d.school)

	var prompt strings.Builder
	prompt.WriteString("Children:\n")
	for _, s := range candidates {
		fmt.Fprintf(&prompt, "- %s %s (%s)\n", s.FirstName, s.LastName, s.TutorGroup)
	}
	fmt.Fprintf(&prompt, "\nParent's message:\n%s\n\nWhich child is this about?", message)

	answer, err := d.invoke(ctx, system, prompt.String())
	if err != nil {
		return nil, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	for i, s := range candidates {
		if strings.Contains(answer, strings.ToLower(s.FirstName+" "+s.LastName)) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (d *Drafter) invoke(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           system,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	out, err := d.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(d.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}
	return utils.NormalizeText(strings.TrimSpace(text.String())), nil
}
